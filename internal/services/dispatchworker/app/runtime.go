package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	clientssqlite "github.com/gclavel/assurvie/internal/services/clients/storage/sqlite"
	notificationsdomain "github.com/gclavel/assurvie/internal/services/notifications/domain"
	"github.com/gclavel/assurvie/internal/services/notifications/mail"
	"github.com/gclavel/assurvie/internal/services/notifications/render"
)

// RuntimeConfig controls dispatch worker startup and sweep behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	SMTPAddr      string
	SMTPFrom      string
	DefaultLocale string
	PollInterval  time.Duration
	BatchSize     int
	StaleAfter    time.Duration
}

const (
	defaultWorkerPort = 8090
	defaultWorkerDB   = "data/clients.db"
)

// Run opens the audit store, starts the health endpoint, and runs the sweep
// loop until the context is canceled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dispatch worker storage dir: %w", err)
		}
	}

	store, err := clientssqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open clients sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close clients sqlite store: %v", closeErr)
		}
	}()

	var transport mail.Transport
	if strings.TrimSpace(cfg.SMTPAddr) != "" {
		transport = mail.NewSMTPTransport(cfg.SMTPAddr, cfg.SMTPFrom, nil)
	}
	renderer, err := render.NewRenderer(cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("build notification renderer: %w", err)
	}
	dispatcher, err := notificationsdomain.NewService(store, transport, renderer, nil, nil)
	if err != nil {
		return fmt.Errorf("build notification dispatcher: %w", err)
	}

	sweeper := NewSweeper(store, dispatcher, Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		StaleAfter:   cfg.StaleAfter,
	}, nil)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on dispatch worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("dispatchworker.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("dispatch worker listening at %v", listener.Addr())
	return sweeper.Run(ctx)
}
