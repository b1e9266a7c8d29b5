package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appointment-booking-api/internal/api"
	"appointment-booking-api/internal/config"
	"appointment-booking-api/internal/directory"
	"appointment-booking-api/internal/events"
	"appointment-booking-api/internal/grpcweb"
	"appointment-booking-api/internal/handler"
	"appointment-booking-api/internal/logging"
	"appointment-booking-api/internal/middleware"
	"appointment-booking-api/internal/revocation"
	"appointment-booking-api/internal/scheduling"
	"appointment-booking-api/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// user directory
	dialect, err := store.ParseDialect(cfg.DirectoryDriver)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, dialect, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("directory store ready", "driver", dialect)

	revoked, closeRevoked, err := openRevocation(ctx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer closeRevoked()

	dir := directory.New(st, revoked, cfg.JWTSecret, cfg.TokenTTL, log)

	// scheduling core + events
	dispatcher := events.NewDispatcher(openPublisher(cfg.RabbitMQURL, log), log)
	svc := scheduling.New(scheduling.WithNotifier(dispatcher))
	hours := scheduling.Hours{Start: cfg.DayStart, End: cfg.DayEnd}

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rl.Stop()

	// grpc server
	grpcSrv, healthSrv := handler.NewServer(handler.New(svc, dir, hours, log), dir, rl, log)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		log.Info("grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc", "error", err)
		}
	}()

	// http: REST API, with grpc-web forwarded to the grpc server
	bridge, err := grpcweb.Dial(loopback(lis.Addr()), log)
	if err != nil {
		return err
	}
	defer bridge.Close()

	rest := api.NewAPI(svc, dir, hours, rl, log)
	rest.RegisterRoutes()
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           bridge.Wrap(rest.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	healthSrv.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn("event publisher close", "error", err)
	}
	return nil
}

func openRevocation(ctx context.Context, url string, log *slog.Logger) (directory.RevocationStore, func(), error) {
	if url == "" {
		return revocation.NewMemory(), func() {}, nil
	}
	r, err := revocation.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	log.Info("connected to Redis")
	return r, func() { _ = r.Close() }, nil
}

// openPublisher falls back to logging events when RabbitMQ is not
// configured or not reachable.
func openPublisher(url string, log *slog.Logger) events.Publisher {
	if url == "" {
		return events.NewLogPublisher(log)
	}
	pub, err := events.NewRabbitMQPublisher(url, log)
	if err != nil {
		log.Warn("RabbitMQ not available, events will be logged", "error", err)
		return events.NewLogPublisher(log)
	}
	return events.NewBreakerPublisher(pub, events.DefaultBreakerConfig(), log)
}

// loopback turns a listener address such as [::]:50051 into one the bridge
// can dial.
func loopback(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		return fmt.Sprintf("localhost:%d", tcp.Port)
	}
	return addr.String()
}
