package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-emailchange/pkg/account"
	pkgconfig "github.com/tendant/simple-emailchange/pkg/config"
	"github.com/tendant/simple-emailchange/pkg/tokengenerator"
)

type Config struct {
	JWTConfig         pkgconfig.JWTConfig
	ServiceConfig     pkgconfig.ServiceConfig
	DatabaseConfig    pkgconfig.DatabaseConfig
	EmailChangeConfig pkgconfig.EmailChangeConfig
}

// tokengen mints a bearer token for the email change API. The subject is either
// given directly or resolved from -email against the configured user store.
func main() {
	_ = godotenv.Load()

	config := Config{}
	cleanenv.ReadEnv(&config)

	secret := flag.String("secret", config.JWTConfig.Secret, "Secret key for signing the token, defaults to JWT_SECRET")
	issuer := flag.String("issuer", "simple-emailchange", "Issuer of the token")
	audience := flag.String("audience", "", "Audience of the token")
	subject := flag.String("subject", "", "Subject of the token (user ID)")
	email := flag.String("email", "", "Look up the subject by email in the configured store")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	extraClaimsJSON := flag.String("claims", "{}", "Extra claims in JSON format")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	var extraClaims map[string]interface{}
	if err := json.Unmarshal([]byte(*extraClaimsJSON), &extraClaims); err != nil {
		fail("Failed to parse extra claims JSON", err)
	}

	if *subject == "" && *email != "" {
		user, err := findUser(context.Background(), config, *email)
		if err != nil {
			fail("Failed to look up user", err)
		}
		*subject = user.ID.String()
		if extraClaims == nil {
			extraClaims = map[string]interface{}{}
		}
		extraClaims["email"] = user.Email
	}
	if *subject == "" {
		fail("Missing subject", fmt.Errorf("pass -subject or -email"))
	}

	tokenGen := tokengenerator.NewJwtTokenGenerator(*secret, *issuer, *audience)
	tokenStr, expiryTime, err := tokenGen.GenerateToken(*subject, *expiry, extraClaims)
	if err != nil {
		fail("Failed to generate token", err)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		claims, err := tokenGen.ParseToken(tokenStr)
		if err != nil {
			fail("Failed to parse generated token", err)
		}
		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fail("Unknown output format", fmt.Errorf("%q", *outputFormat))
	}
}

func findUser(ctx context.Context, config Config, email string) (account.User, error) {
	persistence := config.EmailChangeConfig.PersistenceType()
	storeConfig := account.StoreConfig{DataDir: config.ServiceConfig.DataDir}
	if persistence == "postgres" {
		pool, err := dbutils.NewDbPool(ctx, config.DatabaseConfig.ToDbConfig())
		if err != nil {
			return account.User{}, err
		}
		defer pool.Close()
		storeConfig.Pool = pool
	}

	store, err := account.NewStore(persistence, storeConfig)
	if err != nil {
		return account.User{}, err
	}
	return store.FindByEmail(ctx, email)
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
