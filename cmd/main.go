package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"YcrudAPI/internal/config"
	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/db"
	"YcrudAPI/internal/logger"
	"YcrudAPI/internal/model"
	"YcrudAPI/internal/router"
	"YcrudAPI/internal/store/cache"
	"YcrudAPI/internal/store/memstore"
	"YcrudAPI/internal/store/mongostore"
	"YcrudAPI/internal/store/pgstore"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("store_init_failed", map[string]any{"driver": cfg.StoreDriver, "error": err.Error()})
		os.Exit(1)
	}
	logger.Info("store_connected", map[string]any{"driver": cfg.StoreDriver})

	if cfg.CountCache.TTLSec > 0 && cfg.CountCache.RedisAddr != "" {
		db.InitRedis(cfg.CountCache.RedisAddr)
		if err := db.PingRedis(); err != nil {
			logger.Warn("count_cache_disabled", map[string]any{"error": err.Error()})
		} else {
			store = cache.NewCountCache(store, db.RDB, time.Duration(cfg.CountCache.TTLSec)*time.Second)
			logger.Info("count_cache_enabled", map[string]any{"ttl_sec": cfg.CountCache.TTLSec})
		}
	}

	if err := model.InitRegistry(cfg.ResourcesDir); err != nil {
		logger.Error("registry_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("resources_initialized", map[string]any{"resources": model.ResourceNames()})

	h, err := router.NewRouter(cfg, store)
	if err != nil {
		logger.Error("router_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	log.Printf("Starting server on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, h); err != nil {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (crud.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		database, err := db.InitMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		return mongostore.New(database), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
		}
		if err := db.InitPostgres(cfg.PostgresDSN); err != nil {
			return nil, err
		}
		if err := db.RunMigrations(cfg.PostgresDSN, cfg.Migrations); err != nil {
			return nil, err
		}
		return pgstore.New(db.Pool), nil
	case "memory":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
