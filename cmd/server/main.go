package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wowserver/internal/config"
	"wowserver/internal/db"
	"wowserver/internal/logger"
	"wowserver/internal/services/accounts"
	"wowserver/internal/services/sessions"
	"wowserver/internal/server"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogDir); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Close()
	if cfg.Debug() {
		logger.SetLevel(logrus.DebugLevel)
	}

	// init DB
	if err := db.Init(cfg); err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.EnsureSchema(ctx, db.DB()); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}
	store := accounts.NewStore(db.DB(), cfg.BcryptCost)
	if cfg.AdminAccount != "" {
		if err := store.EnsureAdmin(ctx, cfg.AdminAccount, cfg.AdminPassword); err != nil {
			log.Fatalf("failed to create admin account: %v", err)
		}
	}

	// http server + websocket
	hub := server.NewHub(cfg, store, sessions.Instance())
	go hub.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.NewRouter(hub, db.DB().PingContext),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Connection().WithField("addr", cfg.ListenAddr()).WithField("driver", cfg.DBDriver).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	hub.Close()
	logger.Connection().Info("server shutdown")
}
