package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/skybooking/api"
	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/bootstrap"
	"github.com/Domenick1991/skybooking/internal/cache"
	"github.com/Domenick1991/skybooking/internal/kafka"
	"github.com/Domenick1991/skybooking/internal/logging"
	"github.com/Domenick1991/skybooking/internal/repository"
	"github.com/Domenick1991/skybooking/internal/repository/memory"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/users"
	"github.com/Domenick1991/skybooking/migrations"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

type stores struct {
	companies repository.CompanyRepository
	flights   repository.FlightRepository
	bookings  repository.BookingRepository
	users     repository.UserRepository
	probe     bootstrap.Probe
	close     func()
}

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	flightOpts := []flights.Option{flights.WithLogger(log)}
	bookingOpts := []booking.Option{booking.WithLogger(log)}
	companyOpts := []companies.Option{companies.WithLogger(log)}

	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Flights.CacheTTL())
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, flight cache disabled", slog.Any("error", err))
		} else {
			flightOpts = append(flightOpts, flights.WithCache(redisCache))
			bookingOpts = append(bookingOpts, booking.WithCache(redisCache))
			companyOpts = append(companyOpts, companies.WithCache(redisCache))
		}
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			log.Warn("kafka unreachable, events may be dropped", slog.Any("error", err))
		}
		flightOpts = append(flightOpts, flights.WithProducer(producer, cfg.Kafka.FlightTopic))
		bookingOpts = append(bookingOpts, booking.WithProducer(producer, cfg.Kafka.BookingTopic))
	}

	hash := func(plain string) (string, error) {
		return auth.HashPassword(plain, cfg.Auth.BcryptCost)
	}
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())

	userService := users.NewUserService(st.users, hash)
	sessionService := users.NewSessionService(st.users, tokens, log)
	companyService := companies.NewCompanyService(st.companies, companyOpts...)
	flightService := flights.NewFlightService(st.flights, st.companies, st.bookings, flightOpts...)
	bookingService := booking.NewBookingService(st.bookings, st.flights, bookingOpts...)

	limiter := api.NewIPRateLimiter(cfg.RateLimit.SessionPerMinute, cfg.RateLimit.SessionBurst)
	router := api.NewRouter(log, sessionService, api.Handlers{
		Users:     api.NewUserHandler(userService),
		Companies: api.NewCompanyHandler(companyService),
		Flights:   api.NewFlightHandler(flightService),
		Bookings:  api.NewBookingHandler(bookingService),
		Session:   api.NewSessionHandler(sessionService, limiter),
	})

	return bootstrap.Run(ctx, cfg, log, router, st.probe)
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Database.InMemory {
		log.Warn("using in-memory store, data is lost on exit")
		mem := memory.New()
		return &stores{
			companies: mem.Companies(),
			flights:   mem.Flights(),
			bookings:  mem.Bookings(),
			users:     mem.Users(),
			close:     func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	retries := repository.WithMaxTxRetries(cfg.Database.MaxTxRetries)
	return &stores{
		companies: repository.NewCompanyRepository(pool, retries),
		flights:   repository.NewFlightRepository(pool, retries),
		bookings:  repository.NewBookingRepository(pool, retries),
		users:     repository.NewUserRepository(pool, retries),
		probe:     pool.Ping,
		close:     pool.Close,
	}, nil
}
