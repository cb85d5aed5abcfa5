// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/plantmap/plantmap/geocode"
	"github.com/plantmap/plantmap/spatial"
)

func setupTestDB(t *testing.T) (*sql.DB, PlantRepository) {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	repo := NewPlantRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db, repo
}

func testRecords() []geocode.Record {
	return []geocode.Record{
		{Name: "Acme", Street: "Main St", PostalCode: "10001", City: "New York", Country: "US"},
		{Name: "Acme2", City: "Paris", Country: "FR"},
		{Name: "Acme3", Street: "Main St", PostalCode: "10001", City: "New York", Country: "US"},
	}
}

func TestCreateSchema(t *testing.T) {
	db, _ := setupTestDB(t)

	var tableName string

	err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = 'plants'").Scan(&tableName)
	if err != nil {
		t.Fatalf("Table not created: %v", err)
	}

	if tableName != "plants" {
		t.Errorf("Expected table 'plants', got '%s'", tableName)
	}

	// CreateSchema is idempotent.
	repo := NewPlantRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Second CreateSchema failed: %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	_, repo := setupTestDB(t)

	if err := repo.ReplaceAll(testRecords()); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	pending, err := repo.CountPending()
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}

	if pending != 3 {
		t.Fatalf("expected 3 pending plants, got %d", pending)
	}

	// A second snapshot replaces, not appends.
	if err := repo.ReplaceAll(testRecords()[:1]); err != nil {
		t.Fatalf("second ReplaceAll failed: %v", err)
	}

	pending, err = repo.CountPending()
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}

	if pending != 1 {
		t.Fatalf("expected 1 pending plant after replace, got %d", pending)
	}
}

func TestBackfillCoordinates(t *testing.T) {
	db, repo := setupTestDB(t)

	records := testRecords()
	if err := repo.ReplaceAll(records); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	entries := []geocode.Entry{
		{
			Address:  records[0].Canonical(),
			Resolved: true,
			Point:    spatial.Point{Lat: 40.7128, Lng: -74.006},
		},
		{Address: records[1].Canonical()}, // unresolved, must be skipped
	}

	affected, err := repo.BackfillCoordinates(entries)
	if err != nil {
		t.Fatalf("BackfillCoordinates failed: %v", err)
	}

	// Records 1 and 3 share the canonical address, so one entry updates
	// two rows.
	if affected != 2 {
		t.Fatalf("expected 2 rows updated, got %d", affected)
	}

	pending, err := repo.CountPending()
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}

	if pending != 1 {
		t.Fatalf("expected 1 pending plant, got %d", pending)
	}

	var h3res8 sql.NullInt64

	err = db.QueryRow("SELECT h3_res8 FROM plants WHERE name = 'Acme'").Scan(&h3res8)
	if err != nil {
		t.Fatalf("querying h3 cell: %v", err)
	}

	if !h3res8.Valid || h3res8.Int64 == 0 {
		t.Fatalf("expected h3 cell to be set, got %+v", h3res8)
	}
}

func TestResolvedMarkers(t *testing.T) {
	_, repo := setupTestDB(t)

	records := testRecords()
	if err := repo.ReplaceAll(records); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	markers, err := repo.ResolvedMarkers()
	if err != nil {
		t.Fatalf("ResolvedMarkers failed: %v", err)
	}

	if len(markers) != 0 {
		t.Fatalf("expected no markers before backfill, got %d", len(markers))
	}

	entries := []geocode.Entry{
		{
			Address:  records[0].Canonical(),
			Resolved: true,
			Point:    spatial.Point{Lat: 40.7128, Lng: -74.006},
		},
	}

	if _, err := repo.BackfillCoordinates(entries); err != nil {
		t.Fatalf("BackfillCoordinates failed: %v", err)
	}

	markers, err = repo.ResolvedMarkers()
	if err != nil {
		t.Fatalf("ResolvedMarkers failed: %v", err)
	}

	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(markers))
	}

	for _, m := range markers {
		if m.Point.Lat != 40.7128 || m.Point.Lng != -74.006 {
			t.Errorf("marker %q has wrong point %+v", m.Name, m.Point)
		}

		if m.Address != records[0].Canonical() {
			t.Errorf("marker %q has wrong address %q", m.Name, m.Address)
		}
	}
}
