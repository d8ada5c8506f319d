package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ssouza/wadispatch/internal/api"
	"github.com/ssouza/wadispatch/internal/config"
	"github.com/ssouza/wadispatch/internal/directory"
	"github.com/ssouza/wadispatch/internal/dispatch"
	"github.com/ssouza/wadispatch/internal/gateway"
	"github.com/ssouza/wadispatch/internal/intake"
	"github.com/ssouza/wadispatch/internal/logger"
	"github.com/ssouza/wadispatch/internal/schedule"
	"github.com/ssouza/wadispatch/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting dispatch API server")

	ctx := context.Background()

	// Message store
	messages, err := store.New(ctx, store.Config{
		Type:        cfg.Store.Type,
		PostgresURL: cfg.Store.PostgresURL,
		RedisAddr:   cfg.Store.RedisAddr,
		RedisDB:     cfg.Store.RedisDB,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize message store")
	}
	defer messages.Close()

	// Attachment storage
	attachments, err := intake.New(intake.Config{
		Type:       cfg.Intake.Type,
		Path:       cfg.Intake.Path,
		S3Bucket:   cfg.Intake.S3Bucket,
		S3Prefix:   cfg.Intake.S3Prefix,
		S3Endpoint: cfg.Intake.S3Endpoint,
		S3Region:   cfg.Intake.S3Region,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize attachment storage")
	}

	// Gateway client
	gwCfg := gateway.Config{
		Endpoint:      cfg.Gateway.Endpoint,
		APIVersion:    cfg.Gateway.APIVersion,
		PhoneNumberID: cfg.Gateway.PhoneNumberID,
		AccessToken:   cfg.Gateway.AccessToken,
		Timeout:       cfg.Gateway.Timeout,
	}
	if err := gwCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid gateway configuration")
	}
	gw := gateway.NewCloudClient(gwCfg, gateway.NewHTTPClient(gwCfg.Timeout))

	// Dispatch engine
	executor := dispatch.NewExecutor(gw, messages, attachments, dispatch.Config{
		Pacing:         cfg.Gateway.Pacing,
		UploadFallback: cfg.Gateway.UploadFallback,
		SendRetries:    cfg.Gateway.SendRetries,
	}, log)
	scheduler := schedule.New(log)
	defer scheduler.Stop()
	svc := dispatch.NewService(messages, scheduler, executor, log)

	// Contact book with demo data; a persistent backend can replace this.
	dir := directory.NewMemorySeeded()

	router := api.NewRouter(svc, attachments, messages, dir, log, cfg.API.MaxUploadBytes)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	// Graceful shutdown with 30-second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
