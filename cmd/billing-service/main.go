package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JC-Xevasty/veltech-backup-sub002/internal/attachment"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/auth"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/config"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/db"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/excel"
	httphandler "github.com/JC-Xevasty/veltech-backup-sub002/internal/http"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/http/middleware"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/idempotency"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/logger"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/notify"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/pdf"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/repository"
	"github.com/JC-Xevasty/veltech-backup-sub002/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql handle")
	}
	defer sqlDB.Close()

	var blobs attachment.BlobStore
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		blobs, err = attachment.NewS3Store(ctx, cfg.Storage.S3)
	default:
		blobs, err = attachment.NewFSStore(cfg.Storage.FSRoot)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to init attachment storage")
	}
	files := attachment.NewCommitter(blobs, log, attachment.WithCleanupRetries(cfg.Storage.CleanupRetries))

	store := repository.NewStore(database)

	sinks := []notify.Sink{notify.NewDBSink(store)}
	if cfg.AMQP.URL != "" {
		amqpSink, err := notify.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect amqp")
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}
	emitter := notify.NewEmitter(log, sinks...)

	var rdb redis.Cmdable
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer client.Close()
		rdb = client
	} else {
		log.Warn().Msg("REDIS_ADDR not set, payment idempotency keys are ignored")
	}
	guard := idempotency.NewGuard(rdb, cfg.Redis.IdempotencyTTL, log)

	deps := service.Deps{
		Store:       store,
		Attachments: files,
		Notifier:    emitter,
		Log:         log,
	}
	services := httphandler.Services{
		Quotations:     service.NewQuotationService(deps),
		Projects:       service.NewProjectService(deps),
		Milestones:     service.NewMilestoneService(deps),
		Payments:       service.NewPaymentService(deps),
		PurchaseOrders: service.NewPurchaseOrderService(deps),
		Documents:      service.NewDocumentService(deps, pdf.NewGenerator(), excel.NewGenerator()),
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(services, files, guard, cfg.Storage.MaxUploadMB, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, httphandler.RouterOptions{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		MetricsEnabled: cfg.MetricsEnabled,
		Ready:          sqlDB.PingContext,
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting billing service")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}

	emitter.Wait()
	files.Wait()
	log.Info().Msg("billing service stopped")
}
