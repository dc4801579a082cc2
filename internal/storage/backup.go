package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupExists    = errors.New("backup destination already exists")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrInvalidBackup   = errors.New("invalid backup destination")
)

// BackupInfo describes a completed backup.
type BackupInfo struct {
	CreatedAt     time.Time
	RowCounts     map[string]int
	Path          string
	FileSize      int64
	SchemaVersion int
}

// backedUpTables are counted into BackupInfo.RowCounts.
var backedUpTables = []string{
	"tasks", "goals", "financial_records", "calendar_events",
	"documents", "insights", "conversations", "messages",
}

// Backup writes a consistent copy of the database to destPath using
// VACUUM INTO and verifies the copy's integrity.
func (s *SQLiteStorage) Backup(ctx context.Context, destPath string) (*BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(destPath, "destPath"); err != nil {
		return nil, err
	}

	destPath, err := filepath.Abs(destPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	// The path is interpolated into SQL below.
	if strings.ContainsAny(destPath, "'\";") {
		return nil, fmt.Errorf("%w: path contains forbidden characters", ErrInvalidBackup)
	}
	if _, statErr := os.Stat(destPath); statErr == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}
	if mkErr := os.MkdirAll(filepath.Dir(destPath), 0750); mkErr != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", mkErr)
	}

	if s.dbPath != ":memory:" {
		if _, walErr := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); walErr != nil {
			return nil, fmt.Errorf("failed to checkpoint WAL: %w", walErr)
		}
	}

	// #nosec G201 - destPath is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	if err := verifyIntegrity(ctx, destPath); err != nil {
		if rmErr := os.Remove(destPath); rmErr != nil {
			slog.Error("failed to remove corrupt backup", "path", destPath, "error", rmErr)
		}
		return nil, err
	}

	info := &BackupInfo{
		Path:      destPath,
		CreatedAt: s.now(),
		RowCounts: s.rowCounts(ctx),
	}
	if stat, statErr := os.Stat(destPath); statErr == nil {
		info.FileSize = stat.Size()
	}
	if version, vErr := s.SchemaVersion(ctx); vErr == nil {
		info.SchemaVersion = version
	}
	return info, nil
}

func (s *SQLiteStorage) rowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(backedUpTables))
	for _, table := range backedUpTables {
		var count int
		// #nosec G202 - table names come from a fixed list
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			counts[table] = 0
			continue
		}
		counts[table] = count
	}
	return counts
}

func verifyIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close backup database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupCorrupted, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrBackupCorrupted, result)
	}
	return nil
}
