// Package testutil provides test utilities for bizpilot: an isolated
// in-memory store and a fluent builder for seeding account data.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/bizpilot/internal/storage"
	"github.com/Veraticus/bizpilot/internal/testutil/seed"
)

// DefaultAccount is the account id tests seed into unless they choose another.
const DefaultAccount = "acct-test"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. It automatically
// handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	data := db.Seed(testutil.DefaultAccount).
//		WithTask("Renew lease", model.PriorityHigh).
//		WithRevenueGoal("Hit 100k", 10_000_000).
//		Build()
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SetupTestDBAt is SetupTestDB with a fixed clock, for tests that compare
// stored timestamps.
func SetupTestDBAt(t *testing.T, now time.Time) *TestDB {
	t.Helper()
	db := SetupTestDB(t)
	db.Storage.SetClock(func() time.Time { return now })
	return db
}

// Seed starts a builder that writes records for accountID.
func (db *TestDB) Seed(accountID string) seed.Builder {
	db.t.Helper()
	return seed.NewBuilder(db.t, db.Storage, accountID)
}
