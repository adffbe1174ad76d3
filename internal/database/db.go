// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the process-wide connection pool. Only the historian binary connects;
// the game server itself keeps no database state.
var DB *pgxpool.Pool

// ConnectDB opens the pool from POSTGRES_USER, POSTGRES_PASSWORD, PG_HOST,
// PG_PORT and PG_DATABASE and pings it. Fatal on failure; the historian is
// useless without its store.
func ConnectDB() {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		os.Getenv("PG_PORT"),
		os.Getenv("PG_DATABASE"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("unable to parse pgx config: %v", err)
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		log.Fatalf("unable to create pgx pool: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := DB.Ping(ctx); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	log.Printf("Connected to database %s at %s", os.Getenv("PG_DATABASE"), os.Getenv("PG_HOST"))
}
