package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"eduquiz-platform/internal/config"
)

// RedisConnOpt builds the asynq connection options from the same settings the
// go-redis client uses, accepting either a redis:// URL or a bare host:port.
func RedisConnOpt(cfg *config.Config) asynq.RedisConnOpt {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		if opt, err := asynq.ParseRedisURI(cfg.RedisURL); err == nil {
			return opt
		}
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
