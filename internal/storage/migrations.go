package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					priority TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high')),
					status TEXT NOT NULL CHECK (status IN ('pending', 'in_progress', 'completed')),
					due_date DATETIME,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS goals (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL CHECK (type IN ('revenue', 'expense', 'other')),
					status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'paused')),
					target_amount INTEGER,
					target_date DATETIME,
					progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS financial_records (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('revenue', 'expense', 'other')),
					category TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					amount INTEGER NOT NULL CHECK (amount > 0),
					date DATETIME NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS calendar_events (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					location TEXT NOT NULL DEFAULT '',
					start_time DATETIME NOT NULL,
					end_time DATETIME NOT NULL,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS documents (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					title TEXT NOT NULL,
					file_name TEXT NOT NULL DEFAULT '',
					content TEXT NOT NULL DEFAULT '',
					summary TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS insights (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					type TEXT NOT NULL,
					title TEXT NOT NULL,
					content TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0 CHECK (confidence BETWEEN 0 AND 1),
					financial_record_id TEXT,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS conversations (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					title TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					conversation_id TEXT NOT NULL,
					account_id TEXT NOT NULL,
					role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
					content TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add account-scoped indexes",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_tasks_account ON tasks(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_goals_account ON goals(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_financial_records_account_date ON financial_records(account_id, date)`,
				`CREATE INDEX IF NOT EXISTS idx_calendar_events_account_start ON calendar_events(account_id, start_time)`,
				`CREATE INDEX IF NOT EXISTS idx_documents_account ON documents(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_insights_account ON insights(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_conversations_account ON conversations(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Index insights by source record",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_insights_record ON insights(financial_record_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// SchemaVersion reports the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
