package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/kdimtricp/detectsnap/internal/api"
	"github.com/kdimtricp/detectsnap/internal/app"
	"github.com/kdimtricp/detectsnap/internal/config"
	"github.com/kdimtricp/detectsnap/internal/logging"
	"github.com/kdimtricp/detectsnap/internal/pipeline"
	"github.com/kdimtricp/detectsnap/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to open record store")
	}
	defer func() {
		err = multierr.Append(err, closeStore())
	}()

	images, err := storage.NewLocalImages(cfg.ImagesDirectory)
	if err != nil {
		return errors.Wrap(err, "failed to initialize image storage")
	}

	detector, err := app.NewDetector(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := pipeline.NewController(detector, store, pipeline.WithLogger(logger))
	if err := controller.Initialize(ctx); err != nil {
		// The session still runs; the failure is surfaced in its state.
		logger.Errorw("record store unavailable", "error", err)
	}

	hub := api.NewHub(logger)
	go hub.Run(ctx)
	updates, unsubscribe := controller.Subscribe()
	defer unsubscribe()
	go hub.Follow(updates)

	router := api.NewRouter(&api.App{
		Controller:    controller,
		Images:        images,
		Hub:           hub,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	logger.Infow("server starting",
		"port", cfg.Port,
		"session", controller.ID(),
		"detector", cfg.DetectorURL,
		"store", cfg.StoreBackend,
		"records", cfg.RecordsDirectory,
		"images", cfg.ImagesDirectory,
		"max_upload_size", cfg.MaxUploadSize,
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
