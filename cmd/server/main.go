package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"captiond/internal/config"
	"captiond/internal/model"
	"captiond/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	log.Infof("Loading model from: %s", cfg.Model.Dir)

	captioner, err := model.NewCaptioner(cfg.Model.Dir)
	if err != nil {
		log.Fatal("Failed to initialize caption pipeline: ", err)
	}
	defer captioner.Close()

	log.Infof("Model loaded: image size %d, max length %d",
		captioner.Metadata.ImageSize, captioner.Metadata.MaxLength)

	srv := server.New(cfg, logger, captioner)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed: ", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
