package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/config"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	pgstore "github.com/temporalmomentaneo2024-hub/BAR/internal/store/postgres"
)

// seeduser creates or resets an account in the postgres store. The password
// is read from SEED_PASSWORD so it never shows up in shell history.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	username := flag.String("username", "admin", "account username")
	name := flag.String("name", "Administrador", "display name")
	role := flag.String("role", domain.RoleAdmin, "admin or employee")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	account, err := buildAccount(*username, *name, *role, os.Getenv("SEED_PASSWORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid account")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres unavailable")
	}
	defer func() { _ = pg.Close() }()

	if err := pg.UpsertUser(ctx, account); err != nil {
		log.Fatal().Err(err).Str("username", account.Username).Msg("upsert user failed")
	}
	log.Info().Str("username", account.Username).Str("role", account.Role).Msg("account ready")
}

func buildAccount(username string, name string, role string, password string) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	role = strings.ToLower(strings.TrimSpace(role))
	if len(username) < 4 {
		return domain.UserAccount{}, fmt.Errorf("username must be at least 4 characters")
	}
	if role != domain.RoleAdmin && role != domain.RoleEmployee {
		return domain.UserAccount{}, fmt.Errorf("role must be %s or %s", domain.RoleAdmin, domain.RoleEmployee)
	}
	if len(password) < 8 {
		return domain.UserAccount{}, fmt.Errorf("SEED_PASSWORD must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = username
	}
	return domain.UserAccount{
		Username:  username,
		Name:      name,
		Password:  string(hash),
		Role:      role,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}
