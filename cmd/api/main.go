package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/LJTian/GovNewsHub/internal/api"
	"github.com/LJTian/GovNewsHub/internal/bootstrap"
	"github.com/LJTian/GovNewsHub/internal/config"
	"github.com/LJTian/GovNewsHub/internal/logger"
)

func main() {
	log := logger.New("api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	runner, sources, err := bootstrap.NewRunner(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("init runner failed: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warnf("redis ping failed, keeping reports in memory: %v", err)
			_ = rdb.Close()
			rdb = nil
		}
		cancel()
	}

	r := gin.Default()
	// Basic Auth only when a password is configured; /health stays open
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	server := api.NewServer(runner, sources, api.NewReportStore(rdb), log)
	server.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Infof("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
