package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"processing-requests/internal/infra"
	"processing-requests/internal/infra/credentials"
	"processing-requests/internal/middleware"
)

func main() {
	var (
		tokenFlag    string
		providerFlag string
		subjectFlag  string
		superuser    bool
		ttl          time.Duration
		revoke       bool
	)
	flag.StringVar(&tokenFlag, "token", "", "token to store; when empty one is signed with JWT_SECRET")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderRedispatch, "credential name")
	flag.StringVar(&subjectFlag, "subject", "", "service account uuid used as the token subject (random when empty)")
	flag.BoolVar(&superuser, "superuser", true, "mark the signed token as superuser")
	flag.DurationVar(&ttl, "ttl", 0, "lifetime of the signed token; 0 means no expiry")
	flag.BoolVar(&revoke, "revoke", false, "delete the stored token instead of writing one")
	flag.Parse()

	_ = godotenv.Load()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if provider == "" {
		provider = credentials.ProviderRedispatch
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger(os.Getenv("APP_ENV")).With().Str("cmd", "servicetoken").Str("provider", provider).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if revoke {
		existed, err := store.DeleteToken(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to revoke %s token: %v\n", provider, err)
			os.Exit(1)
		}
		if !existed {
			fmt.Printf("no %s token stored\n", provider)
			return
		}
		fmt.Printf("%s token revoked\n", provider)
		return
	}

	token := strings.TrimSpace(tokenFlag)
	subject := strings.TrimSpace(subjectFlag)
	if token == "" {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			fmt.Fprintln(os.Stderr, "JWT_SECRET is required to sign a token (or pass -token)")
			os.Exit(1)
		}
		if subject == "" {
			subject = uuid.NewString()
		} else if _, err := uuid.Parse(subject); err != nil {
			fmt.Fprintf(os.Stderr, "subject %q is not a uuid\n", subject)
			os.Exit(1)
		}
		claims := middleware.TokenClaims{Sub: subject, IsSuperuser: superuser, Issuer: "servicetoken"}
		if ttl > 0 {
			claims.Exp = time.Now().Add(ttl).Unix()
		}
		signed, err := middleware.SignJWT(secret, claims)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
			os.Exit(1)
		}
		token = signed
	}

	props := map[string]any{"stored_at": time.Now().UTC().Format(time.RFC3339)}
	if subject != "" {
		props["subject"] = subject
	}
	if err := store.SetToken(ctx, provider, token, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s token: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s token stored successfully\n", provider)
}
