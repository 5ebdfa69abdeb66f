// src/store/store_test.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	dbfs "github.com/username/ledgerguard/db"
	"github.com/username/ledgerguard/src/models"
	_ "modernc.org/sqlite"
)

// testDB opens a fresh SQLite database in a temp dir and applies the full
// migration set, so tests run against the real schema.
func testDB(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		t.Fatalf("creating migration driver: %v", err)
	}
	source, err := iofs.New(dbfs.MigrationsFS, "migrations")
	if err != nil {
		t.Fatalf("opening embedded migrations: %v", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		t.Fatalf("creating migration instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("applying migrations: %v", err)
	}
	return New(db)
}

func testAccount(t *testing.T, st *Store, key string) *models.Account {
	t.Helper()
	account, err := st.GetOrCreateAccount(context.Background(), key, "")
	if err != nil {
		t.Fatalf("creating test account %q: %v", key, err)
	}
	return account
}

func testCategory(t *testing.T, st *Store, name string) *models.Category {
	t.Helper()
	category, _, err := st.GetOrCreateCategory(context.Background(), name, nil, false)
	if err != nil {
		t.Fatalf("creating test category %q: %v", name, err)
	}
	return category
}

func testHolding(t *testing.T, st *Store, accountKey, instrumentName string) int64 {
	t.Helper()
	ctx := context.Background()
	account := testAccount(t, st, accountKey)
	instrumentID, err := st.CreateInstrument(ctx, &models.Instrument{Name: instrumentName, Currency: "EUR"})
	if err != nil {
		t.Fatalf("creating test instrument: %v", err)
	}
	holdingID, err := st.CreateHolding(ctx, &models.Holding{AccountID: account.ID, InstrumentID: instrumentID})
	if err != nil {
		t.Fatalf("creating test holding: %v", err)
	}
	return holdingID
}

func testSource(t *testing.T, st *Store, name string) *models.AssetSource {
	t.Helper()
	source, err := st.GetAssetSourceByName(context.Background(), name)
	if err != nil {
		t.Fatalf("looking up seeded source %q: %v", name, err)
	}
	return source
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parsing decimal %q: %v", s, err)
	}
	return v
}
