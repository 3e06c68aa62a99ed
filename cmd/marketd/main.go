package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/api"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config/di"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/event"
	"go.uber.org/zap"
)

func main() {
	config.Init("marketd")

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	if err := di.RegisterListeners(container); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to register event listeners")
	}

	server := &http.Server{
		Addr:    ":" + config.Get().Api.Port,
		Handler: container.Get("api").(*api.Server).Router(),
	}

	go func() {
		zap.L().With(zap.String("port", config.Get().Api.Port)).Info("Marketplace Started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().With(zap.Error(err)).Fatal("Failed to start marketplace")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to shut down cleanly")
	}

	// listeners must drain before the indexer flushes
	container.Get("event.manager").(*event.Manager).Close()
	if err := container.Delete(); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to close services")
	}
	zap.L().Info("Marketplace Stopped")
	_ = zap.L().Sync()
}
