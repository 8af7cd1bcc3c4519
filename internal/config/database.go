package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create accounts table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'REGULAR',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create wallet_accounts table. The balance check backs the ledger
	// invariant: no sequence of debits may drive it negative.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS wallet_accounts (
			account_id VARCHAR(36) PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create wallet_transactions table (append-only ledger)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS wallet_transactions (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			kind VARCHAR(16) NOT NULL,
			amount BIGINT NOT NULL,
			related_content_id VARCHAR(36),
			description TEXT NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create content_items table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS content_items (
			id VARCHAR(36) PRIMARY KEY,
			kind VARCHAR(16) NOT NULL,
			title VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL CHECK (price >= 0),
			video_id VARCHAR(36) UNIQUE,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create access_grants table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS access_grants (
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			content_id VARCHAR(36) NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
			source VARCHAR(16) NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			PRIMARY KEY (account_id, content_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create purchase_records table. The unique constraint on
	// (account_id, content_id) is the storage-level idempotency boundary:
	// two concurrent purchases of the same item cannot both commit.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS purchase_records (
			id VARCHAR(36) PRIMARY KEY,
			transaction_id VARCHAR(36) UNIQUE NOT NULL,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			content_id VARCHAR(36) NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
			price BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, content_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create video_progress table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS video_progress (
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			video_id VARCHAR(36) NOT NULL,
			current_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			progress_percent INTEGER NOT NULL DEFAULT 0,
			total_watch_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			last_watched_at TIMESTAMP NOT NULL,
			PRIMARY KEY (account_id, video_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create video_checkpoints table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS video_checkpoints (
			account_id VARCHAR(36) NOT NULL,
			video_id VARCHAR(36) NOT NULL,
			percentage INTEGER NOT NULL,
			video_time_seconds DOUBLE PRECISION NOT NULL,
			reached_at TIMESTAMP NOT NULL,
			PRIMARY KEY (account_id, video_id, percentage),
			FOREIGN KEY (account_id, video_id) REFERENCES video_progress(account_id, video_id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_wallet_transactions_account_time ON wallet_transactions(account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_video_progress_video ON video_progress(video_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
