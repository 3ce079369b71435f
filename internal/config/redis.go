package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisOptions builds the client options for the search store. Connection
// establishment itself is owned by the search connection manager; this
// only translates configuration into go-redis options.
//
// The store may be briefly unreachable at process start, so the options
// keep the client's internal retry enabled with a fixed backoff window
// and set explicit dial/read/write timeouts instead of aborting on the
// first failed dial.
func RedisOptions(cfg *Config) (*redis.Options, error) {
	var opt *redis.Options

	// Check if RedisURL is a full URL (like Upstash) or just host:port
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opt.MaxRetries = 3
	opt.MinRetryBackoff = 250 * time.Millisecond
	opt.MaxRetryBackoff = 2 * time.Second
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.PoolTimeout = 10 * time.Second

	return opt, nil
}

// AsynqRedisOpt builds the queue's redis connection options from the same
// endpoint configuration the search store uses.
func AsynqRedisOpt(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
