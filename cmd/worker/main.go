package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/fadilmartias/aca-radar/internal/worker"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Msg("no .env file loaded")
	}

	appConfig := config.LoadAppConfig()
	logging.Init(logging.Config{Level: appConfig.LogLevel, Format: appConfig.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := config.LoadDBConfig()
	queueConfig := config.LoadQueueConfig()
	if dbConfig.Driver == "memory" || queueConfig.Driver == "memory" {
		logging.Fatal().Msg("a standalone worker needs a shared database and queue; run cmd/server for memory mode")
	}

	db, err := repository.Connect(dbConfig, appConfig.IsProduction())
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logging.Fatal().Err(err).Msg("could not get database instance")
	}
	defer sqlDB.Close()

	pipeline, err := service.NewPipeline(ctx, config.LoadServicesConfig(), config.LoadGeminiConfig(), config.LoadOpenRouterConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("could not build embedding pipeline")
	}
	defer pipeline.Close()

	wmLogger := logging.NewWatermillAdapter()
	pubSub, err := queue.NewPubSub(queueConfig, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to queue")
	}
	defer pubSub.Close()
	publisher := queue.NewPublisher(pubSub.Publisher, queueConfig.Topic)
	defer publisher.Close()

	runner, err := worker.New(
		repository.NewEmbeddingJobStore(dbConfig, db),
		pipeline,
		pubSub.Subscriber,
		publisher,
		queueConfig,
		config.LoadWorkerConfig(),
		wmLogger,
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not create worker")
	}

	if err := runner.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("worker stopped")
		return
	}
	logging.Info().Msg("worker stopped")
}
