package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/livecss/internal/api"
	"github.com/charlesng35/livecss/internal/app"
	"github.com/charlesng35/livecss/internal/app/maintenance"
	"github.com/charlesng35/livecss/internal/cache"
	"github.com/charlesng35/livecss/internal/database"
	"github.com/charlesng35/livecss/internal/editor"
	"github.com/charlesng35/livecss/internal/handlers"
	"github.com/charlesng35/livecss/internal/middleware"
	"github.com/charlesng35/livecss/internal/realtime"
	"github.com/charlesng35/livecss/internal/snippets"
	"github.com/charlesng35/livecss/pkg/logger"
	"github.com/charlesng35/livecss/web"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisClient
	Memory    *cache.MemoryStore
	Store     *snippets.Store
	Hub       *realtime.Hub
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
	// Backend is the storage backend actually in use after fallbacks.
	Backend string
	// StorageKey is the key the snippet collection is stored under.
	StorageKey string
}

// bootstrapRuntime opens storage, starts maintenance jobs and builds the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{Memory: cache.NewMemoryStore()}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial runtime shutdown", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := cfg.Storage.NormalizedBackend()

	if backend != app.StorageMemory {
		stack.DB, err = initialiseDatabase(cfg)
		if err != nil {
			return nil, err
		}
	}

	if backend == app.StorageRedis || cfg.Cache.Redis.Enabled {
		stack.Redis, err = connectRedis(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable; falling back to database-backed storage", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var slotStore cache.Store
	switch {
	case backend == app.StorageRedis && stack.Redis != nil:
		slotStore = stack.Redis
		stack.Backend = app.StorageRedis
	case backend == app.StorageMemory:
		slotStore = stack.Memory
		stack.Backend = app.StorageMemory
	default:
		slotStore = cache.NewDatabaseStore(stack.DB)
		stack.Backend = app.StorageDatabase
	}

	slot, err := snippets.NewCacheSlot(slotStore, cfg.Storage.Key)
	if err != nil {
		return nil, fmt.Errorf("initialise snippet slot: %w", err)
	}
	stack.StorageKey = slot.Key()
	log.Info("snippet storage ready", zap.String("backend", stack.Backend), zap.String("key", stack.StorageKey))
	stack.Store, err = snippets.NewStore(slot)
	if err != nil {
		return nil, fmt.Errorf("initialise snippet store: %w", err)
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	case stack.DB != nil:
		stack.RateStore = middleware.NewCacheRateStore(cache.NewDatabaseStore(stack.DB))
	default:
		stack.RateStore = middleware.NewCacheRateStore(stack.Memory)
	}

	targets := []maintenance.Target{{Name: "memory", Purger: stack.Memory}}
	if stack.DB != nil {
		targets = append(targets, maintenance.Target{Name: "database", Purger: cache.NewDatabaseStore(stack.DB)})
	}
	stack.Cleaner = maintenance.NewCleaner(targets, maintenance.WithCacheSchedule(cfg.Maintenance.CacheCleanupSchedule))
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	codec := snippets.NewCodec()
	stack.Hub = realtime.NewHub(realtime.WithEditor(stack.Store, editor.NewReducer(codec)))

	assets, err := loadAssets(cfg.Server.StaticDir)
	if err != nil {
		return nil, err
	}

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		Store:        stack.Store,
		Codec:        codec,
		Hub:          stack.Hub,
		RateStore:    stack.RateStore,
		Assets:       assets,
		HealthChecks: stack.healthChecks(),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, runs a final sweep and releases connections.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var err error
	if s.Cleaner != nil {
		if stopCtx := s.Cleaner.Stop(); stopCtx != nil {
			<-stopCtx.Done()
		}
		err = multierr.Append(err, s.Cleaner.RunOnce(ctx))
		s.Cleaner = nil
	}

	if s.Redis != nil {
		if closeErr := s.Redis.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close redis: %w", closeErr))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if closeErr := database.Close(s.DB); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close database: %w", closeErr))
		}
		s.DB = nil
	}

	return err
}

func (s *runtimeStack) healthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if db := s.DB; db != nil {
		checks = append(checks, handlers.HealthCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return database.Ping(ctx, db) },
		})
	}
	if redis := s.Redis; redis != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: redis.Ping})
	}
	return checks
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func connectRedis(ctx context.Context, cfg *app.Config) (*cache.RedisClient, error) {
	client, err := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// loadAssets serves the editor bundle from dir when set, otherwise from the embedded copy.
func loadAssets(dir string) (fs.FS, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		assets, err := web.FS()
		if err != nil {
			return nil, fmt.Errorf("load embedded assets: %w", err)
		}
		return assets, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir %q is not a directory", dir)
	}
	return os.DirFS(dir), nil
}
