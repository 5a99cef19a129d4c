package db_test

import (
	"context"
	"path/filepath"
	"testing"

	dbfs "github.com/garnizeh/bounty/db"
	"github.com/garnizeh/bounty/internal/db"
)

// TestMigrate_FileDatabaseSurvivesReopen migrates a file-backed database,
// reopens it and checks the second run applies nothing new.
func TestMigrate_FileDatabaseSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	d, err := db.New(ctx, dbPath, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := d.Exec(ctx, `INSERT INTO identities (id, wallet_address, created, updated) VALUES ('i1', 'w1', 1, 1)`); err != nil {
		t.Fatalf("insert identity: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	d, err = db.New(ctx, dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var wallet string
	if err := d.QueryRow(ctx, `SELECT wallet_address FROM identities WHERE id = 'i1'`).Scan(&wallet); err != nil {
		t.Fatalf("identity lost after reopen: %v", err)
	}
	if wallet != "w1" {
		t.Fatalf("unexpected wallet %q", wallet)
	}

	// foreign keys are enforced on every connection
	if _, err := d.Exec(ctx, `INSERT INTO bounties (id, title, description, status, creator_id, created, updated) VALUES ('b1', 't', 'd', 'PUBLISHED', 'missing', 1, 1)`); err == nil {
		t.Fatalf("expected foreign key violation for unknown creator")
	}
}
