package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackseed/auth-service/internal/cache"
	"github.com/stackseed/auth-service/internal/config"
	"github.com/stackseed/auth-service/internal/interceptors"
	"github.com/stackseed/auth-service/internal/metrics"
	"github.com/stackseed/auth-service/internal/password"
	"github.com/stackseed/auth-service/internal/pkg/log"
	"github.com/stackseed/auth-service/internal/service"
	"github.com/stackseed/auth-service/internal/storage"
	"github.com/stackseed/auth-service/internal/storage/memory"
	"github.com/stackseed/auth-service/internal/storage/mongo"
	"github.com/stackseed/auth-service/internal/storage/postgres"
	"github.com/stackseed/auth-service/internal/token"
	transport "github.com/stackseed/auth-service/internal/transport/http"
	"github.com/stackseed/auth-service/internal/transport/http/handlers"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	lg := log.New(cfg.Env, os.Stdout)
	slog.SetDefault(lg)
	lg.Info("starting application", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, lg); err != nil {
		lg.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	lg.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	// Хранилище c таймаутом подключения.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	str, err := openStorage(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		return err
	}
	defer str.Close()
	lg.Info("storage_connected", slog.String("driver", cfg.DB.Driver))

	hasher, err := password.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	issuer := token.NewIssuer(cfg.Auth)
	m := metrics.New(prometheus.DefaultRegisterer)

	svc := service.New(str, issuer, hasher, m)

	if cfg.Redis.URL != "" {
		cacheCtx, cacheCancel := context.WithTimeout(ctx, 5*time.Second)
		sc, err := cache.NewRedisCache(cacheCtx, cfg.Redis.URL, "")
		cacheCancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = sc.Close() }()

		svc.SetSessionCache(sc)
		lg.Info("session_cache_enabled")
	}
	lg.Info("service_initialized")

	var ready atomic.Bool

	// Публичный REST.
	apiSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: transport.NewRouter(svc, transport.Options{
			Logger:    lg,
			Timeout:   cfg.Timeouts.Service,
			BasePath:  cfg.HTTP.BasePath,
			BodyLimit: cfg.HTTP.BodyLimit,
			Cookie: handlers.CookieOptions{
				Secure: cfg.Env == log.EnvProd,
				MaxAge: svc.RefreshTTL(),
			},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Служебный HTTP: пробы и метрики.
	opsSrv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           opsMux(&ready),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpc_prometheus.EnableHandlingTimeHistogram()

	// gRPC: health-сервис и интерсепторы.
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryRecover(lg),
			interceptors.UnaryLogging(lg),
			interceptors.UnaryTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecover(lg),
			interceptors.StreamLogging(lg),
			grpc_prometheus.StreamServerInterceptor,
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Рефлексия — только в local/dev.
	if cfg.Env == log.EnvLocal || cfg.Env == log.EnvDev {
		reflection.Register(grpcServer)
	}
	grpc_prometheus.Register(grpcServer)

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.GRPC.Addr(), err)
	}

	errCh := make(chan error, 3)
	serveHTTP(lg, "ops", opsSrv, errCh)
	serveHTTP(lg, "api", apiSrv, errCh)
	go func() {
		lg.Info("grpc_listen_start", slog.String("addr", cfg.GRPC.Addr()))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	// Сервис готов: health -> SERVING и readiness=1.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		lg.Info("shutdown_requested")
	case serveErr = <-errCh:
	}

	// Снимаем готовность до остановки серверов.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("api_shutdown_failed", slog.String("err", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		lg.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		lg.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	_ = opsSrv.Shutdown(shutdownCtx)

	return serveErr
}

// openStorage выбирает реализацию хранилища по драйверу.
func openStorage(ctx context.Context, cfg config.DBConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case config.DriverMongo:
		return mongo.New(ctx, cfg.URL)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

func opsMux(ready *atomic.Bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func serveHTTP(lg *slog.Logger, name string, srv *http.Server, errCh chan<- error) {
	go func() {
		lg.Info("http_listen_start", slog.String("server", name), slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s http serve: %w", name, err)
		}
	}()
}
