package kafka

import (
	"context"
	"log/slog"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/segmentio/kafka-go"
)

type EntryStore interface {
	Append(ctx context.Context, entry domain.EventLogEntry) error
}

// AuditHandler persists every well-formed event. Malformed messages are logged
// and skipped so they are committed instead of blocking the partition.
func AuditHandler(store EntryStore, log *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		entry, err := DecodeEntry(msg)
		if err != nil {
			log.WarnContext(ctx, "skipping malformed event",
				slog.String("topic", msg.Topic),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err))
			return nil
		}
		if err := store.Append(ctx, entry); err != nil {
			return err
		}
		log.InfoContext(ctx, "event recorded",
			slog.String("type", entry.Type),
			slog.String("entity", entry.Entity),
			slog.Int64("entity_id", entry.EntityID))
		return nil
	}
}
