// Command seed_admin creates (or resets) the initial admin account so a fresh
// deployment can log in and start managing announcements.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/unchk/agrt-api/pkg/config"
	"github.com/unchk/agrt-api/pkg/database"
)

func main() {
	var (
		email     string
		password  string
		firstName string
		lastName  string
	)

	flag.StringVar(&email, "email", "", "Admin email address (required)")
	flag.StringVar(&password, "password", "", "Admin password (required)")
	flag.StringVar(&firstName, "first-name", "Admin", "Admin first name")
	flag.StringVar(&lastName, "last-name", "AGRT", "Admin last name")
	flag.Parse()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		log.Fatal("both -email and -password are required")
	}
	if len(password) < 6 {
		log.Fatal("password must be at least 6 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	const query = `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'ADMIN', TRUE, $6, $6)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    role = 'ADMIN',
		    active = TRUE,
		    updated_at = EXCLUDED.updated_at`
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), firstName, lastName, now); err != nil {
		log.Fatalf("failed to upsert admin account: %v", err)
	}

	fmt.Printf("Admin account ready: %s\n", email)
}
