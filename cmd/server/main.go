package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/domain/fiber/handler"
	"github.com/fadilmartias/aca-radar/internal/logging"
	"github.com/fadilmartias/aca-radar/internal/middleware"
	"github.com/fadilmartias/aca-radar/internal/queue"
	"github.com/fadilmartias/aca-radar/internal/repository"
	"github.com/fadilmartias/aca-radar/internal/service"
	"github.com/fadilmartias/aca-radar/internal/usecase"
	"github.com/fadilmartias/aca-radar/internal/worker"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	db, err := repository.Connect(dbConfig, appConfig.IsProduction())
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logging.Fatal().Err(err).Msg("could not get database instance")
	}
	defer sqlDB.Close()

	catalog, err := config.LoadJournalCatalog(appConfig.JournalsFile)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not load journal catalog")
	}

	servicesConfig := config.LoadServicesConfig()
	pipeline, err := service.NewPipeline(ctx, servicesConfig, config.LoadGeminiConfig(), config.LoadOpenRouterConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("could not build embedding pipeline")
	}
	defer pipeline.Close()

	queueConfig := config.LoadQueueConfig()
	workerConfig := config.LoadWorkerConfig()
	wmLogger := logging.NewWatermillAdapter()
	pubSub, err := queue.NewPubSub(queueConfig, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not connect to queue")
	}
	defer pubSub.Close()
	publisher := queue.NewPublisher(pubSub.Publisher, queueConfig.Topic)
	defer publisher.Close()

	jobStore := repository.NewEmbeddingJobStore(dbConfig, db)
	paperRepo := repository.NewPaperRepository(db)

	// with the in-process queue nobody else can consume, so the API runs the worker
	if queueConfig.Driver == "memory" {
		runner, err := worker.New(jobStore, pipeline, pubSub.Subscriber, publisher, queueConfig, workerConfig, wmLogger)
		if err != nil {
			logging.Fatal().Err(err).Msg("could not start in-process worker")
		}
		go func() {
			if err := runner.Run(ctx); err != nil {
				logging.Error().Err(err).Msg("in-process worker stopped")
				stop()
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName: appConfig.Name,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Status code defaults to 500
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return c.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !appConfig.IsProduction(),
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // 1
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.IsProduction()
		},
	}))
	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return sqlDB.PingContext(c.UserContext()) == nil
		},
	}))
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	api := app.Group("/api/v1")
	researchUsecase := usecase.NewResearchInterestUsecase(jobStore, publisher, workerConfig.FreshnessWindow)
	handler.NewResearchInterestHandler(researchUsecase).RegisterRoutes(api)
	paperUsecase := usecase.NewPaperUsecase(paperRepo, jobStore, pipeline.Embedder, catalog)
	handler.NewPaperHandler(paperUsecase).RegisterRoutes(api)

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logging.Debug().Int("goroutines", runtime.NumGoroutine()).Msg("runtime stats")
			}
		}
	}()

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logging.Error().Err(err).Msg("server shutdown")
		}
	}()

	logging.Info().Str("port", appConfig.Port).Str("queue", queueConfig.Driver).Str("db", dbConfig.Driver).Msg("server running")
	if err := app.Listen(appConfig.Port); err != nil {
		logging.Fatal().Err(err).Msg("server stopped")
	}
}
