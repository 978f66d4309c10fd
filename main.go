package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"hostel-booking/cmd"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/gateway"
	"hostel-booking/internal/job"
	"hostel-booking/internal/wire"
	"hostel-booking/pkg/database"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using production defaults.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("Failed to prepare schema", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	tokens := gateway.NewMemoryTokenCache()
	if config.Redis.URL != "" {
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, tokens are cached per process", zap.Error(err))
		} else {
			tokens = gateway.NewRedisTokenCache(client, "")
			logger.Info("Gateway token cache backed by redis")
		}
	}

	repos := repository.NewRepository(db, logger)
	mpesa := gateway.NewMpesaClient(config.Mpesa, tokens, logger)
	m := metrics.New()

	app := wire.Wiring(repos, mpesa, config, m, logger)

	sweeper, err := job.NewSweepScheduler(app.Service.Payment, config.Payment, logger)
	if err != nil {
		logger.Fatal("Failed to schedule timeout sweep", zap.Error(err))
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			logger.Warn("Timeout sweep shutdown", zap.Error(err))
		}
	}()

	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("Server error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
