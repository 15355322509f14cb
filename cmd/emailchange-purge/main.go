package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-emailchange/pkg/account"
	pkgconfig "github.com/tendant/simple-emailchange/pkg/config"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
)

type Config struct {
	ServiceConfig     pkgconfig.ServiceConfig
	DatabaseConfig    pkgconfig.DatabaseConfig
	RedisConfig       pkgconfig.RedisConfig
	EmailChangeConfig pkgconfig.EmailChangeConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	dryRun := flag.Bool("dry-run", false, "Count expired requests without removing them")
	olderThan := flag.Int("older-than", 0, "Only purge requests expired for at least this many seconds")
	persistence := flag.String("persistence", "", "Persistence backend, overrides EMAIL_CHANGE_PERSISTENCE")
	envFile := flag.String("env", ".env", "Optional .env file")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Warn("Failed to load .env file", "path", *envFile, "error", err)
		}
	}

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed reading configuration", "error", err)
		os.Exit(1)
	}
	if *persistence != "" {
		config.EmailChangeConfig.Persistence = *persistence
	}
	if *olderThan < 0 {
		slog.Error("older-than must not be negative", "older_than", *olderThan)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, cleanup, err := openRepository(ctx, config)
	if err != nil {
		slog.Error("Failed opening email change repository", "persistence", config.EmailChangeConfig.PersistenceType(), "error", err)
		os.Exit(1)
	}
	defer cleanup()

	removed, err := purge(ctx, emailchange.NewPurger(repo), *dryRun, time.Duration(*olderThan)*time.Second)
	if err != nil {
		slog.Error("Failed purging expired email change requests", "error", err)
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("%d expired email change request(s) would be removed\n", removed)
		return
	}
	fmt.Printf("Removed %d expired email change request(s)\n", removed)
}

func purge(ctx context.Context, purger *emailchange.Purger, dryRun bool, age time.Duration) (int64, error) {
	switch {
	case dryRun && age > 0:
		return purger.CountExpiredOlderThan(ctx, age)
	case dryRun:
		return purger.CountExpired(ctx)
	case age > 0:
		return purger.RemoveExpiredOlderThan(ctx, age)
	default:
		return purger.RemoveExpired(ctx)
	}
}

// openRepository connects the configured backend. Purging never resolves
// accounts, so the lookup is backed by an empty store.
func openRepository(ctx context.Context, config Config) (emailchange.EmailChangeRepository, func(), error) {
	persistence := config.EmailChangeConfig.PersistenceType()
	cleanup := func() {}

	var pool *pgxpool.Pool
	var redisClient *redis.Client
	switch persistence {
	case "postgres":
		dbConfig := config.DatabaseConfig.ToDbConfig()
		p, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed creating dbpool for %s@%s: %w", dbConfig.Database, dbConfig.Host, err)
		}
		pool = p
		cleanup = p.Close
	case "redis":
		redisClient = config.RedisConfig.NewClient()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, cleanup, fmt.Errorf("failed connecting to redis at %s: %w", config.RedisConfig.Addr, err)
		}
		cleanup = func() { redisClient.Close() }
	}

	repo, err := emailchange.NewEmailChangeRepository(persistence, emailchange.RepositoryConfig{
		Pool:        pool,
		DataDir:     config.ServiceConfig.DataDir,
		Redis:       redisClient,
		RedisPrefix: config.RedisConfig.Prefix,
		Lookup:      account.NewLookup(account.NewInMemoryStore()),
	})
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return repo, cleanup, nil
}
