package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ictrack/internal/census"
	"ictrack/internal/config"
	httpapi "ictrack/internal/http"
	"ictrack/internal/logger"
	"ictrack/internal/service"
	"ictrack/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ictrack")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 预览批次暂存：Redis 或进程内存兜底
	var kv store.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		kv = store.NewRedisKV(redisClient)
		log.Info("Redis enabled for preview staging", zap.String("addr", cfg.Redis.Addr))
	} else {
		kv = store.NewMemoryKV()
		log.Info("Redis disabled, staging preview batches in memory")
	}

	// 整库文档：JSON 文件，未配置时退化为内存（仅联测）
	var docs store.DocumentStore
	if cfg.Data.File != "" {
		docs = store.NewJSONFileStore(cfg.Data.File)
		log.Info("document store ready", zap.String("file", cfg.Data.File))
	} else {
		docs = store.NewMemoryDocumentStore()
		log.Warn("DATA_FILE empty, document will not survive restart")
	}

	var notifier *service.EMRNotifier
	if cfg.EMR.Enabled && cfg.EMR.WebhookURL != "" {
		notifier = service.NewEMRNotifier(cfg.EMR.WebhookURL,
			time.Duration(cfg.EMR.TimeoutSeconds)*time.Second, log)
		log.Info("EMR webhook notifier enabled")
	}

	verifier := census.ValidatorConfig{
		Units:             cfg.Census.Units,
		DuplicateSeverity: census.Verdict(cfg.Census.DuplicateSeverity),
	}
	svc := service.NewCensusService(docs, kv, verifier,
		time.Duration(cfg.Census.PreviewTTLMinutes)*time.Minute, notifier, log)

	router := httpapi.NewRouter(log)
	router.RegisterCensusRoutes(httpapi.NewCensusHandler(svc, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server exited", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
