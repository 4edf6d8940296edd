package main

import (
	"net/http"

	"go.uber.org/zap"

	"tabletop/internal/broadcast"
	"tabletop/internal/config"
	"tabletop/internal/engine"
	"tabletop/internal/server"
	"tabletop/internal/session"
	"tabletop/internal/storage"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	hub := broadcast.NewHub(log)
	eng := engine.New(log)
	mgr := session.NewManager(eng, store, hub, log)
	if err := mgr.Restore(); err != nil {
		log.Warn("restore sessions", zap.Error(err))
	}

	go mgr.CleanupLoop(cfg.CleanupInterval, cfg.SessionMaxAge)

	srv := server.New(store, mgr, hub, log)

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		log.Fatal("server", zap.Error(err))
	}
}
