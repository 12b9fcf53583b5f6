// Command server runs the duel match service: session management and
// websocket play over HTTP, with optional Redis journaling and Postgres
// archival.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitduel/server/internal/cache"
	"github.com/splitduel/server/internal/catalog"
	"github.com/splitduel/server/internal/config"
	"github.com/splitduel/server/internal/database"
	"github.com/splitduel/server/internal/engine"
	"github.com/splitduel/server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed loading configuration")
	}
	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	reg := catalog.Default()
	if cfg.CatalogPath != "" {
		reg, err = catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed loading card catalog")
		}
		logrus.WithField("path", cfg.CatalogPath).Info("card catalog loaded")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if cfg.RedisURL != "" {
		if err := cache.InitRedis(ctx, cfg.RedisURL); err != nil {
			logrus.WithError(err).Fatal("failed connecting to redis")
		}
		logrus.Info("action journal enabled")
	}
	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			logrus.WithError(err).Fatal("failed connecting to database")
		}
		logrus.Info("match archive enabled")
	}
	cancel()

	rules := engine.DefaultRules()
	rules.StartingHealth = int8(cfg.StartingHealth)
	hub := ws.NewHub(reg, rules, cfg.JWTSecret, cfg.TokenTTL)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      hub.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket writes manage their own deadlines
	}

	go func() {
		logrus.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logrus.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("shutdown was not clean")
	}
	if database.DB != nil {
		database.DB.Close()
	}
	if cache.Rdb != nil {
		_ = cache.Rdb.Close()
	}
}
