package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"go-glsync/internal/config"

	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// PostgresDB is the relational backend that owns the gl_ tables
type PostgresDB struct {
	DB *sql.DB
}

// NewPostgres opens the relational backend and applies the prerequisite migrations
func NewPostgres(lc fx.Lifecycle, cfg *config.Config) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.SupabaseDBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Println("Connected to Postgres!")

	if err := NewMigration(cfg, DefaultEngine).Up(); err != nil {
		db.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Println("Closing Postgres...")
			return db.Close()
		},
	})

	return &PostgresDB{DB: db}, nil
}
