package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-redis/redis/v8"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-emailchange/pkg/account"
	pkgconfig "github.com/tendant/simple-emailchange/pkg/config"
	"github.com/tendant/simple-emailchange/pkg/emailchange"
	emailchangeapi "github.com/tendant/simple-emailchange/pkg/emailchange/api"
	"github.com/tendant/simple-emailchange/pkg/messaging"
	"github.com/tendant/simple-emailchange/pkg/metrics"
	"github.com/tendant/simple-emailchange/pkg/notice"
	"github.com/tendant/simple-emailchange/pkg/ratelimit"
	"github.com/tendant/simple-emailchange/pkg/router"
	"go.uber.org/zap"
)

type Config struct {
	AppConfig         app.AppConfig
	ServiceConfig     pkgconfig.ServiceConfig
	DatabaseConfig    pkgconfig.DatabaseConfig
	EmailConfig       pkgconfig.EmailConfig
	JWTConfig         pkgconfig.JWTConfig
	RedisConfig       pkgconfig.RedisConfig
	NATSConfig        pkgconfig.NATSConfig
	RateLimitConfig   pkgconfig.RateLimitConfig
	EmailChangeConfig pkgconfig.EmailChangeConfig
}

func (c Config) Validate() error {
	return errors.Join(
		c.ServiceConfig.Validate(),
		c.EmailChangeConfig.Validate(),
		c.NATSConfig.Validate(),
	)
}

func main() {
	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true, // Enables line number & file path
	}))

	// Set the logger as the default
	slog.SetDefault(logger)

	// Load .env file if it exists (before reading environment variables)
	loadEnvFile()

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed reading configuration", "error", err)
		os.Exit(-1)
	}
	if err := config.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(-1)
	}

	persistence := config.EmailChangeConfig.PersistenceType()
	ctx := context.Background()

	var pool *pgxpool.Pool
	if persistence == "postgres" {
		dbConfig := config.DatabaseConfig.ToDbConfig()
		var err error
		pool, err = dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(-1)
		}
		defer pool.Close()
	}

	var redisClient *redis.Client
	if persistence == "redis" {
		redisClient = config.RedisConfig.NewClient()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed connecting to redis", "addr", config.RedisConfig.Addr, "error", err)
			os.Exit(-1)
		}
		defer redisClient.Close()
	}

	accounts, err := account.NewStore(persistence, account.StoreConfig{
		Pool:    pool,
		DataDir: config.ServiceConfig.DataDir,
	})
	if err != nil {
		slog.Error("Failed creating user store", "persistence", persistence, "error", err)
		os.Exit(-1)
	}

	repo, err := emailchange.NewEmailChangeRepository(persistence, emailchange.RepositoryConfig{
		Pool:        pool,
		DataDir:     config.ServiceConfig.DataDir,
		Redis:       redisClient,
		RedisPrefix: config.RedisConfig.Prefix,
		Lookup:      account.NewLookup(accounts),
	})
	if err != nil {
		slog.Error("Failed creating email change repository", "persistence", persistence, "error", err)
		os.Exit(-1)
	}

	if err := migrate(ctx, accounts, repo); err != nil {
		slog.Error("Failed migrating database", "error", err)
		os.Exit(-1)
	}
	seedUsers(ctx, accounts, config.ServiceConfig.SeedUsers)

	// Events go to prometheus and, when enabled, to NATS
	// chi-demo's HTTP metrics and the event counters share the default registry
	recorder := metrics.NewRecorderWith("simple-emailchange", prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	publishers := emailchange.MultiPublisher{recorder}
	if config.NATSConfig.Enabled {
		zapLogger, err := zap.NewProduction()
		if err != nil {
			slog.Error("Failed creating zap logger", "error", err)
			os.Exit(-1)
		}
		defer zapLogger.Sync()

		natsPublisher, err := messaging.Connect(config.NATSConfig.URL, config.NATSConfig.ClientName, config.NATSConfig.SubjectPrefix, zapLogger)
		if err != nil {
			slog.Error("Failed connecting to NATS", "url", config.NATSConfig.URL, "error", err)
			os.Exit(-1)
		}
		defer natsPublisher.Close()
		publishers = append(publishers, natsPublisher)
	}

	opts, err := config.EmailChangeConfig.ToServiceOptions()
	if err != nil {
		slog.Error("Invalid email change configuration", "error", err)
		os.Exit(-1)
	}
	opts = append(opts, emailchange.WithEventPublisher(publishers))

	urlBuilder, err := emailchange.NewRouteURLBuilder(config.ServiceConfig.BaseURL, map[string]string{
		emailchangeapi.DefaultRouteName: config.ServiceConfig.VerifyPath,
	})
	if err != nil {
		slog.Error("Failed creating URL builder", "base_url", config.ServiceConfig.BaseURL, "error", err)
		os.Exit(-1)
	}

	otpGenerator, err := emailchange.NewOtpGenerator(config.EmailChangeConfig.OtpLength)
	if err != nil {
		slog.Error("Invalid OTP length", "length", config.EmailChangeConfig.OtpLength, "error", err)
		os.Exit(-1)
	}

	notificationManager, err := notice.NewNotificationManager(config.ServiceConfig.BaseURL, config.EmailConfig.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed initializing notification manager", "error", err)
		os.Exit(-1)
	}

	handle := emailchangeapi.NewHandle(
		emailchange.NewEmailChangeService(repo, urlBuilder, opts...),
		accounts,
		emailchangeapi.WithOtpService(emailchange.NewOtpEmailChangeService(repo, otpGenerator, opts...)),
		emailchangeapi.WithNotifier(notice.NewEmailChangeNotifier(notificationManager)),
	)

	rateLimitMiddleware := ratelimit.NewMiddleware(config.RateLimitConfig.ToMiddlewareConfig())
	defer rateLimitMiddleware.Close()

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	startPurger(purgeCtx, emailchange.NewPurger(repo), config.ServiceConfig.PurgeInterval)

	server := app.NewApp(
		app.WithAppConfig(config.AppConfig),
		app.WithMetrics(config.AppConfig.Metrics.Enabled),
		app.WithCors(app.DefaultCorsOptions()),
		app.WithHttpin(true),
		app.WithReqLogger(app.DefaultHttpLogger()),
	)

	// Middleware goes before any route is registered
	server.R.Use(rateLimitMiddleware.Handler)
	slog.Info("Rate limiting configured",
		"global", config.RateLimitConfig.GlobalEnabled,
		"per_ip", config.RateLimitConfig.PerIPEnabled,
		"per_account", config.RateLimitConfig.PerAccountEnabled)

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	router.SetupRoutes(server.R, router.Config{
		Prefix:      config.ServiceConfig.RoutePrefix,
		Handle:      handle,
		Auth:        jwtauth.New("HS256", []byte(config.JWTConfig.Secret), nil),
		RateLimit:   rateLimitMiddleware,
		VerifyLimit: config.RateLimitConfig.VerifyLimit(),
		Metrics:     recorder.Handler(),
	})

	printBanner(config, persistence)

	server.Run()
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// migrate creates the tables of every store backed by PostgreSQL
func migrate(ctx context.Context, stores ...interface{}) error {
	for _, store := range stores {
		m, ok := store.(migrator)
		if !ok {
			continue
		}
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

func seedUsers(ctx context.Context, accounts account.Store, emails []string) {
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		existing, err := accounts.FindByEmail(ctx, email)
		if err == nil {
			slog.Info("Seed user exists", "email", existing.Email, "id", existing.ID)
			continue
		}
		if !errors.Is(err, account.ErrUserNotFound) {
			slog.Error("Failed looking up seed user", "email", email, "error", err)
			continue
		}
		user, err := accounts.CreateUser(ctx, account.CreateUserParams{Email: email})
		if err != nil {
			slog.Error("Failed creating seed user", "email", email, "error", err)
			continue
		}
		slog.Info("Seed user created", "email", user.Email, "id", user.ID)
	}
}

// startPurger removes expired requests on a fixed interval until ctx is done
func startPurger(ctx context.Context, purger *emailchange.Purger, interval string) {
	if strings.TrimSpace(interval) == "" {
		slog.Info("Expired request purging disabled")
		return
	}
	every, err := pkgconfig.ParseDuration(interval)
	if err != nil || every <= 0 {
		slog.Warn("Invalid purge interval, purging disabled", "interval", interval, "error", err)
		return
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := purger.RemoveExpired(ctx)
				if err != nil {
					slog.Error("Failed purging expired email change requests", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Purged expired email change requests", "removed", removed)
				}
			}
		}
	}()
}

func printBanner(config Config, persistence string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Email change service")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Listening:    %s:%d\n", config.AppConfig.Host, config.AppConfig.Port)
	fmt.Printf("API prefix:   %s\n", config.ServiceConfig.RoutePrefix)
	fmt.Printf("Verify links: %s%s\n", config.ServiceConfig.BaseURL, config.ServiceConfig.VerifyPath)
	fmt.Printf("Persistence:  %s\n", persistence)
	fmt.Printf("Dual confirm: %t\n", config.EmailChangeConfig.RequireOldEmailConfirmation)
	fmt.Printf("NATS events:  %t\n", config.NATSConfig.Enabled)
	fmt.Println(strings.Repeat("=", 60))
}

// loadEnvFile loads .env from the executable directory or the working directory
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
