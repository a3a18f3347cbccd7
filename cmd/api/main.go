package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gastos-cloud/internal/config"
	apihttp "gastos-cloud/internal/http"
	"gastos-cloud/internal/keyvalue"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Persistencia local de la sesión: redis si está configurado, si no archivo.
	var storage keyvalue.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			storage = keyvalue.NewRedisStore(redisClient)
		}
		cancel()
	}
	if storage == nil {
		storage = keyvalue.NewFileStore(cfg.SessionFile)
	}

	identityClient := remote.NewHTTPIdentityClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey, logger)
	recordClient := remote.NewHTTPRecordClient(cfg.DatabaseURL, logger)
	blobClient := remote.NewHTTPBlobClient(cfg.StorageURL, logger)

	sessionSvc := service.NewSessionService(logger, identityClient, storage)
	expenseSvc := service.NewExpenseService(logger, sessionSvc, recordClient, blobClient)

	if restored, err := sessionSvc.Restore(ctx); err == nil && restored {
		logger.Info("session restored from storage")
	}

	sessionHandler := apihttp.NewSessionHandler(logger, sessionSvc)
	expenseHandler := apihttp.NewExpenseHandler(logger, expenseSvc)
	router := apihttp.NewRouter(logger, sessionHandler, expenseHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
