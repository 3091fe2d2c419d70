package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/docmatch/internal/common"
	"github.com/joseph-ayodele/docmatch/internal/export"
	"github.com/joseph-ayodele/docmatch/internal/ingest"
	"github.com/joseph-ayodele/docmatch/internal/pipeline"
	"github.com/joseph-ayodele/docmatch/internal/repository"
	"github.com/joseph-ayodele/docmatch/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	inbox := flag.String("watch", "", "directory whose new batch files are resolved automatically")
	reports := flag.String("reports", "", "where inbox reports are written (defaults to next to each batch)")
	flag.Parse()

	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	var runs repository.RunRepository
	if cfg.Database.SQLitePath != "" {
		db, err := repository.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open run store", "path", cfg.Database.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		runs = repository.NewRunRepository(db, logger)
		if err := runs.Migrate(ctx); err != nil {
			logger.Error("failed to migrate run store", "error", err)
			os.Exit(1)
		}
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()

	resolver := server.NewResolverService(driver, runs, logger)
	server.RegisterResolverServer(grpcServer, resolver)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	inboxDone := make(chan struct{})
	if *inbox != "" {
		box := &server.Inbox{Service: resolver, Export: export.NewService(logger), OutDir: *reports}
		go func() {
			defer close(inboxDone)
			if err := box.Run(ctx, ingest.WatchConfig{
				Roots:       []string{*inbox},
				InitialScan: true,
				Debounce:    500 * time.Millisecond,
				Logger:      logger,
			}); err != nil {
				logger.Error("inbox stopped", "dir", *inbox, "error", err)
			}
		}()
	} else {
		close(inboxDone)
	}

	logger.Info("docmatchd listening", "addr", addr, "records", driver.Catalog().Len())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	<-inboxDone
	logger.Info("docmatchd stopped")
}
