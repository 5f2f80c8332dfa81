package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openlot/openlot/core/internal/cache"
	"github.com/openlot/openlot/core/internal/config"
)

// NewCache builds the configured cache backend.
func NewCache(cfg *config.Config, log zerolog.Logger) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		c, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis cache configured")
		return c, nil
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND: %s", cfg.CacheBackend)
	}
}
