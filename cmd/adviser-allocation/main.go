package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"adviser-allocation/internal/allocator"
	"adviser-allocation/internal/config"
	"adviser-allocation/internal/crm"
	"adviser-allocation/internal/database"
	"adviser-allocation/internal/hr"
	"adviser-allocation/internal/httpapi"
	"adviser-allocation/internal/logger"
	"adviser-allocation/internal/notify"
	"adviser-allocation/internal/repository"
	"adviser-allocation/internal/store"
)

const serviceName = "adviser-allocation"

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("tz", cfg.Engine.Timezone), zap.Error(err))
	}

	db, err := database.Open(&cfg.Database, cfg.Engine.MaxParallel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	var cache store.Cache
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		cache = store.NewRedisCache(redisClient)
	}

	crmClient := crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.Token, cfg.CRM.Timeout, log)

	var tokens hr.TokenSource
	if cfg.HR.Token != "" {
		tokens = hr.StaticTokenSource(cfg.HR.Token)
	} else {
		tokens = hr.NewOAuthTokenSource(cfg.HR.TokenURL, cfg.HR.ClientID, cfg.HR.ClientSecret, cfg.HR.Timeout)
	}
	hrClient := hr.NewClient(cfg.HR.BaseURL, tokens, cfg.HR.Timeout, log)

	st := store.New(store.Deps{
		Closures:    repository.NewPostgresClosuresRepository(db),
		Overrides:   repository.NewPostgresOverridesRepository(db),
		Leave:       repository.NewPostgresLeaveRepository(db),
		Allocations: repository.NewPostgresAllocationsRepository(db),
		Settings:    repository.NewPostgresSettingsRepository(db),
		CRM:         crmClient,
		HR:          hrClient,
		Cache:       cache,
		CacheTTL:    cfg.CacheTTL,
		Logger:      log,
	})

	notifier := notify.NewChatNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, log)

	alloc := allocator.New(st, crmClient, notifier, allocator.Config{
		HorizonWeeks: cfg.Engine.HorizonWeeks,
		BufferWeeks:  cfg.Engine.BufferWeeks,
		MaxParallel:  cfg.Engine.MaxParallel,
		OuterTimeout: cfg.Engine.OuterTimeout,
		Location:     loc,
	}, log)

	router := httpapi.NewRouter(log)
	router.RegisterAllocationRoutes(httpapi.NewAllocationHandler(alloc, log))
	router.RegisterAvailabilityRoutes(httpapi.NewAvailabilityHandler(alloc, st, httpapi.AvailabilityConfig{
		HorizonWeeks: cfg.Engine.HorizonWeeks,
		BufferWeeks:  cfg.Engine.BufferWeeks,
		Location:     loc,
	}, log))
	router.RegisterAdminRoutes(
		httpapi.NewClosuresHandler(st, log),
		httpapi.NewOverridesHandler(st, log),
	)
	router.RegisterOpsRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.Enabled && cfg.HR.BaseURL != "" {
		go st.RunLeaveSync(ctx, cfg.Sync.Interval, cfg.Engine.HorizonWeeks)
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
