// Command dev-token mints an access token for an existing storefront account,
// for exercising the API locally without the storefront login flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/coursevault-api/internal/models"
	"github.com/noah-isme/coursevault-api/internal/repository"
	"github.com/noah-isme/coursevault-api/internal/service"
	"github.com/noah-isme/coursevault-api/pkg/config"
	"github.com/noah-isme/coursevault-api/pkg/database"
	"github.com/noah-isme/coursevault-api/pkg/logger"
)

func main() {
	email := flag.String("email", "", "account email")
	userID := flag.String("user", "", "account id (used when -email is empty)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" && *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: dev-token -email learner@example.com | -user <id>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("dev-token refuses to run with ENV=production")
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var user *models.User
	if *email != "" {
		user, err = users.FindByEmail(ctx, *email)
	} else {
		user, err = users.FindByID(ctx, *userID)
	}
	if err != nil {
		log.Fatalf("failed to load account: %v", err)
	}

	auth := service.NewAuthService(users, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: *ttl,
		Issuer:            cfg.JWT.Issuer,
	})
	token, expiresAt, err := auth.IssueAccessToken(user)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	logr.Sugar().Infow("issued dev token", "user_id", user.ID, "role", user.Role, "expires_at", expiresAt)
	fmt.Println(token)
}
