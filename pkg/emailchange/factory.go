package emailchange

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig contains configuration for creating an email change repository
type RepositoryConfig struct {
	// Pool is required for PostgreSQL repositories
	Pool *pgxpool.Pool
	// DataDir is required for file-based repositories
	DataDir string
	// Redis is required for redis repositories
	Redis *redis.Client
	// RedisPrefix optionally namespaces redis keys
	RedisPrefix string
	// Lookup resolves accounts from requests for every backend
	Lookup AccountLookup
}

// NewEmailChangeRepository creates a repository based on the persistence type
func NewEmailChangeRepository(persistenceType string, config RepositoryConfig) (EmailChangeRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres repository")
		}
		return NewPostgresEmailChangeRepository(config.Pool, config.Lookup), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileEmailChangeRepository(config.DataDir, config.Lookup)
	case "redis", "cache":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisEmailChangeRepository(config.Redis, config.Lookup, config.RedisPrefix), nil
	case "inmem", "memory":
		return NewInMemEmailChangeRepository(config.Lookup), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, redis, inmem)", persistenceType)
	}
}
