package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"accessmap-server/config"
	"accessmap-server/handlers"
	"accessmap-server/logger"
	"accessmap-server/metrics"
	"accessmap-server/services"
)

func main() {
	hashPassword := flag.Bool("hash-password", false, "read a password from stdin, print its bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()
	if *hashPassword {
		if err := printPasswordHash(os.Stdin, os.Stdout); err != nil {
			logrus.Fatalf("failed to hash password: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.File)
	metrics.RegisterDefault()

	ctx := context.Background()

	// Store: MongoDB when a URI is configured, otherwise in memory.
	var store services.LocationStore
	if cfg.Mongo.URI != "" {
		client, err := services.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.OpTimeout)
		if err != nil {
			logrus.Fatalf("failed to connect to MongoDB: %v", err)
		}
		store = services.NewMongoStore(client, cfg.Mongo.Database, cfg.Mongo.Collection, cfg.Mongo.OpTimeout)
	} else {
		logrus.Warn("MONGODB_URI not set, using the in-memory store")
		store = services.NewMemoryStore()
	}

	// Optional Redis geo mirror.
	var (
		redisClient *redis.Client
		geoCache    *services.GeoCache
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = services.NewRedisClient(ctx, services.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, geo cache disabled")
		} else {
			defer redisClient.Close()
			geoCache = services.NewGeoCache(redisClient)
			logrus.Info("Redis connected")
		}
	}

	backend, err := services.ParseGeoBackend(cfg.GeoBackend)
	if err != nil {
		logrus.Fatalf("invalid GEO_BACKEND: %v", err)
	}
	locationService := services.NewLocationService(store, geoCache, backend)

	indexCtx, stopIndexing := context.WithCancel(ctx)
	defer stopIndexing()
	if err := locationService.EnsureIndexes(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to ensure indexes, retrying in the background")
		go func() {
			if err := locationService.KeepEnsuringIndexes(indexCtx, 30*time.Second); err == nil {
				logrus.Info("Indexes ensured")
			}
		}()
	}
	if cfg.SeedFile != "" {
		n, err := locationService.SeedFromFile(ctx, cfg.SeedFile)
		if err != nil {
			logrus.WithError(err).Error("Seeding stopped early")
		}
		if n > 0 {
			logrus.WithField("count", n).Info("Seeded locations")
		}
	}
	if n, err := locationService.RebuildGeoCache(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to rebuild geo cache")
	} else if geoCache != nil {
		logrus.WithField("count", n).Info("Geo cache rebuilt")
	}

	var authService *services.AuthService
	if cfg.Auth.JWTSecret != "" {
		authService = services.NewAuthService(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if !authService.Enabled() {
			logrus.Warn("JWT_SECRET set without admin credentials, write routes cannot be used")
		}
	} else {
		logrus.Warn("JWT_SECRET not set, write routes are unauthenticated")
	}

	health := map[string]handlers.Pinger{"store": store}
	if geoCache != nil {
		health["redis"] = geoCache
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Locations:      locationService,
		Auth:           authService,
		Health:         health,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateRPS:        cfg.Limits.RPS,
		RateBurst:      cfg.Limits.Burst,
	})

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.Infof("Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	stopIndexing()
	if err := store.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Failed to close store")
	}
	logrus.Info("Server stopped")
}

func printPasswordHash(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("password is empty")
	}
	hash, err := services.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
