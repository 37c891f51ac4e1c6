package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"zip-weather/internal/app"
	"zip-weather/internal/config"
	"zip-weather/pkg/logger"

	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := logger.SetupLogger(cfg.Env)

	log.Info("start zip weather service", slog.String("version", version), slog.String("env", cfg.Env))

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			log.Error("service stopped with error", "error", err)
			application.Shutdown(cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}

	application.Shutdown(cfg.ShutdownTimeout)
	log.Info("zip weather service stopped")
}
