package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/cache"
	"github.com/introslabs/intros/internal/config"
	"github.com/introslabs/intros/internal/index"
)

// AppContext holds shared dependencies (DB, Redis, index, config, logger)
// wired once at boot and threaded into every service.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Index      *index.Index
	Logger     *slog.Logger
}

// New creates a new AppContext.
func New(cfg *config.Config, database *gorm.DB, rdb *cache.RedisCache, idx *index.Index, logger *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         database,
		RedisCache: rdb,
		Index:      idx,
		Logger:     logger,
	}
}
