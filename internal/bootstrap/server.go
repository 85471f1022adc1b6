package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout = 5 * time.Second
	probeInterval   = 10 * time.Second
)

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	healthConn *grpc.ClientConn
	httpServer *http.Server
	probe      Probe
	log        *slog.Logger
}

// Run serves the REST API and the gRPC health service until ctx is cancelled
// or either server fails, then shuts both down.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger, api http.Handler, probe Probe) error {
	s, err := newServers(cfg, log, api, probe)
	if err != nil {
		return err
	}
	defer s.healthConn.Close()

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc health server listening", slog.String("addr", cfg.GRPC.Address))
		return s.grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.HTTP.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.watch(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		log.Info("servers stopped")
		return nil
	})
	return g.Wait()
}

func newServers(cfg *config.Config, log *slog.Logger, api http.Handler, probe Probe) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	conn, err := grpc.NewClient(dialAddress(cfg.GRPC.Address), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health endpoint: %w", err)
	}

	handler, err := NewHTTPHandler(cfg, api, healthpb.NewHealthClient(conn))
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Servers{
		grpcServer: grpcSrv,
		health:     hs,
		healthConn: conn,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		probe: probe,
		log:   log,
	}, nil
}

// dialAddress turns a listen address such as ":9090" into one a client can
// dial on this host.
func dialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// NewHTTPHandler mounts /healthz (answered through the gRPC health service),
// the Swagger UI under /docs/, the OpenAPI document under /swagger/ and the API
// behind CORS at the root.
func NewHTTPHandler(cfg *config.Config, api http.Handler, healthClient healthpb.HealthClient) (http.Handler, error) {
	gateway := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthClient))

	mux := http.NewServeMux()
	mux.Handle("/healthz", gateway)

	if cfg.HTTP.SwaggerDir != "" {
		fs := http.FileServer(http.Dir(cfg.HTTP.SwaggerDir))
		mux.Handle("/swagger/", http.StripPrefix("/swagger/", fs))
		mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/swagger/openapi.json")))
	}

	origins := cfg.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	mux.Handle("/", corsHandler.Handler(api))
	return mux, nil
}

// watch flips the overall health status with the probe result.
func (s *Servers) watch(ctx context.Context) {
	s.report(ctx)
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.report(ctx)
		}
	}
}

func (s *Servers) report(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.probe(probeCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn("health probe failed", slog.Any("error", err))
		}
	}
	s.health.SetServingStatus("", status)
}
