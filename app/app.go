package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"task-manager-api/config"
	"task-manager-api/db"
	"task-manager-api/handler"
	"task-manager-api/logger"
	"task-manager-api/mailer"
	"task-manager-api/metrics"
	"task-manager-api/repository"
	"task-manager-api/router"
	"task-manager-api/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func Run() {
	logger.Init()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Log.WithError(err).Warn("Unknown log level, falling back to info")
	}
	logger.Log.WithFields(logrus.Fields{
		"store": cfg.Store.Driver,
		"redis": cfg.Redis.Enabled,
		"mail":  cfg.Mail.Enabled,
	}).Info("Configuration loaded successfully")

	// A missing signing secret stops the process here, never per request.
	minter, err := service.NewJWTMinter(cfg.JWT, cfg.Token)
	if err != nil {
		logger.Log.Fatalf("Error creating token minter: %v", err)
	}

	ctx := context.Background()

	userRepo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("Error opening %s store: %v", cfg.Store.Driver, err)
	}
	defer closeStore()

	var cache service.ICacheClient
	if cfg.Redis.Enabled {
		redisClient, err := db.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Log.Fatalf("Error connecting to redis: %v", err)
		}
		defer redisClient.Close()
		cache = redisClient
	}

	var m mailer.Mailer = mailer.NoopMailer{}
	if cfg.Mail.Enabled {
		m = mailer.NewSMTPMailer(cfg.Mail)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	// --- Wiring All Layers Together ---
	userService := service.NewUserService(service.UserServiceDeps{
		Repo:     userRepo,
		Hasher:   service.NewBcryptHasher(),
		Minter:   minter,
		Mailer:   m,
		Cache:    cache,
		CacheTTL: cfg.Redis.TTL,
		Metrics:  appMetrics,
	})
	userHandler := handler.NewUserHandler(userService, cfg.Server.PublicURL, cfg.Mail.ResetURL)

	r := router.NewRouter(
		userHandler,
		handler.NewAuthMiddleware(minter),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Log.Info("Server exited properly")
}

// openStore connects the account store selected by store.driver. The
// returned func releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (repository.IUserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Log.WithError(err).Warn("Error disconnecting from mongo")
			}
		}

		repo := repository.NewMongoUserRepository(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		indexCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
		defer cancel()
		if err := repo.EnsureIndexes(indexCtx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("could not create indexes: %w", err)
		}
		return repo, closeFn, nil

	case config.StorePostgres:
		database, err := db.Connect(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(database, cfg.Database.Name); err != nil {
			database.Close()
			return nil, nil, err
		}
		return repository.NewUserRepository(database), func() { database.Close() }, nil

	case config.StoreMemory:
		logger.Log.Warn("Using the in-memory store; accounts are lost on restart")
		return repository.NewInMemoryUserRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
