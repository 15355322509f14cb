package config

import (
	"github.com/go-redis/redis/v8"
)

// RedisConfig holds the connection for the redis persistence backend
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	// Prefix namespaces every key written by the service
	Prefix string `env:"REDIS_PREFIX" env-default:"emailchange"`
}

// NewClient opens a client for the configured server
func (r RedisConfig) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
}
