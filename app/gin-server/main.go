package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/config"
	"github.com/yoockh/legalmatch/internal/api/handlers"
	"github.com/yoockh/legalmatch/internal/api/middleware"
	"github.com/yoockh/legalmatch/internal/api/routes"
	"github.com/yoockh/legalmatch/internal/cache"
	"github.com/yoockh/legalmatch/internal/logger"
	"github.com/yoockh/legalmatch/internal/metrics"
	"github.com/yoockh/legalmatch/internal/providers/embedding"
	mongorepo "github.com/yoockh/legalmatch/internal/repositories/mongo"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/searchclient"
	"github.com/yoockh/legalmatch/internal/services"
	"github.com/yoockh/legalmatch/internal/storage"
	"github.com/yoockh/legalmatch/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	settings, err := config.LoadSettings()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.EnsurePostgresSchema(ctx); err != nil {
		log.WithError(err).Fatal("PostgreSQL schema error")
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	// Init MongoDB (optional, index run reports)
	var runs mongorepo.IndexRunRepository
	switch err := config.InitMongo(); {
	case errors.Is(err, config.ErrMongoDisabled):
		log.Warn("MONGO_URI not set; index run reports are only logged")
	case err != nil:
		log.WithError(err).Fatal("MongoDB init error")
	default:
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Fatal("MongoDB index error")
		}
		runs = mongorepo.NewIndexRunRepo(config.MongoDatabase())
		log.Info("MongoDB connected")
	}

	provider, closeProvider, err := config.NewEmbeddingProvider(ctx, settings.Embedding)
	if err != nil {
		log.WithError(err).Fatal("embedding provider init error")
	}
	defer func() { _ = closeProvider() }()

	// query embeddings repeat; document embeddings never do
	var queryProvider embedding.Provider = provider
	if settings.Embedding.CacheTTL > 0 {
		queryProvider = embedding.NewCachedProvider(provider, cache.NewRedisCache(config.RedisClient, "legalmatch:"),
			settings.Embedding.CacheTTL, logger.Component(log, "embedding-cache"))
	}

	var signer storage.Signer
	if settings.Photo.Bucket != "" {
		gcs, err := storage.NewGCSSigner(ctx, settings.Photo.Bucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		defer gcs.Close()
		signer = gcs
	}

	profiles := pgrepo.NewProfileRepo(config.PostgresDB)
	searchCfg := services.SearchConfig{
		DefaultLimit:     settings.Search.DefaultLimit,
		MaxLimit:         settings.Search.MaxLimit,
		DefaultThreshold: settings.Search.DefaultThreshold,
		PhotoURLTTL:      settings.Photo.URLTTL,
	}

	indexer, err := services.NewIndexerService(profiles, provider, runs, settings.Indexer.Concurrency, logger.Component(log, "indexer"))
	if err != nil {
		log.WithError(err).Fatal("indexer init error")
	}
	defer indexer.Close()

	trigger := &workers.RedisIndexTrigger{Redis: config.RedisClient, Stream: settings.Indexer.Stream}
	searchSvc := services.NewSearchService(profiles, queryProvider, signer, searchCfg, logger.Component(log, "search"))
	profileSvc := services.NewProfileService(profiles, trigger, signer, searchCfg, logger.Component(log, "profiles"))

	worker := &workers.IndexWorker{
		Redis:    config.RedisClient,
		Indexer:  indexer,
		Logger:   logger.Component(log, "index-worker"),
		Stream:   settings.Indexer.Stream,
		Group:    settings.Indexer.Group,
		Interval: settings.Indexer.Interval,
	}
	if err := worker.Start(ctx); err != nil {
		log.WithError(err).Fatal("index worker start error")
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(logger.Component(log, "http")), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Search:  handlers.NewSearchHandler(searchSvc),
		Index:   handlers.NewIndexHandler(indexer),
		Profile: handlers.NewProfileHandler(profileSvc),
		WS: handlers.NewWSHandler(searchSvc, searchclient.ProfileLister{Profiles: profileSvc},
			searchclient.DefaultTimeout, logger.Component(log, "ws")),
		JWT: middleware.JWTConfig{
			Secret:   settings.JWT.Secret,
			Issuer:   settings.JWT.Issuer,
			Audience: settings.JWT.Audience,
		},
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", settings.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdown(srv, log)
}

func shutdown(srv *http.Server, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(ctx)
	}
	_ = config.RedisClient.Close()
	if sqlDB, err := config.PostgresDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
