// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the plant snapshot and its resolved coordinates
// in DuckDB for querying and for the map server.
package store

import (
	"database/sql"
	"fmt"

	"github.com/plantmap/plantmap/geocode"
	"github.com/plantmap/plantmap/spatial"
)

// Marker is a resolved plant as served to the map frontend.
type Marker struct {
	Name    string        `json:"name"`
	Address string        `json:"address"`
	Point   spatial.Point `json:"point"`
}

// PlantRepository handles persistence of the plant snapshot.
type PlantRepository interface {
	// CreateSchema creates the plants table
	CreateSchema() error

	// ReplaceAll replaces the stored snapshot with the given records
	ReplaceAll(records []geocode.Record) error

	// BackfillCoordinates updates plants from resolved cache entries,
	// matching by canonical address. Returns the number of rows updated.
	BackfillCoordinates(entries []geocode.Entry) (int64, error)

	// CountPending returns how many plants still lack coordinates
	CountPending() (int, error)

	// ResolvedMarkers returns every plant with coordinates
	ResolvedMarkers() ([]Marker, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlPlantRepository struct {
	db *sql.DB
}

// NewPlantRepository creates a new plant repository.
func NewPlantRepository(db *sql.DB) PlantRepository {
	return &sqlPlantRepository{db: db}
}

func (r *sqlPlantRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlPlantRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS plants (
			name        VARCHAR,
			street      VARCHAR,
			postal_code VARCHAR,
			city        VARCHAR,
			country     VARCHAR,
			address     VARCHAR NOT NULL,
			lat         DOUBLE,
			lng         DOUBLE,
			h3_res4     BIGINT,
			h3_res5     BIGINT,
			h3_res6     BIGINT,
			h3_res7     BIGINT,
			h3_res8     BIGINT
		)
	`)
	if err != nil {
		return fmt.Errorf("creating plants table: %w", err)
	}

	return nil
}

func (r *sqlPlantRepository) ReplaceAll(records []geocode.Record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM plants`); err != nil {
		return fmt.Errorf("clearing plants: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO plants (name, street, postal_code, city, country, address)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(
			rec.Name,
			rec.Street,
			rec.PostalCode,
			rec.City,
			rec.Country,
			rec.Canonical(),
		); err != nil {
			return fmt.Errorf("inserting plant %q: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing plants: %w", err)
	}

	return nil
}

func (r *sqlPlantRepository) BackfillCoordinates(entries []geocode.Entry) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE plants
		SET lat = ?, lng = ?,
		    h3_res4 = ?, h3_res5 = ?, h3_res6 = ?, h3_res7 = ?, h3_res8 = ?
		WHERE address = ?
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	var affected int64

	for _, e := range entries {
		if !e.Resolved {
			continue
		}

		cells, err := spatial.Cells(e.Point)
		if err != nil {
			return 0, fmt.Errorf("computing cells for %q: %w", e.Address, err)
		}

		res, err := stmt.Exec(
			e.Point.Lat,
			e.Point.Lng,
			cells.Res4,
			cells.Res5,
			cells.Res6,
			cells.Res7,
			cells.Res8,
			e.Address,
		)
		if err != nil {
			return 0, fmt.Errorf("updating plants for %q: %w", e.Address, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting affected rows: %w", err)
		}

		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing backfill: %w", err)
	}

	return affected, nil
}

func (r *sqlPlantRepository) CountPending() (int, error) {
	var pending int

	err := r.db.QueryRow(`SELECT count(*) FROM plants WHERE lat IS NULL`).Scan(&pending)
	if err != nil {
		return 0, fmt.Errorf("counting pending plants: %w", err)
	}

	return pending, nil
}

func (r *sqlPlantRepository) ResolvedMarkers() ([]Marker, error) {
	rows, err := r.db.Query(`
		SELECT name, address, lat, lng
		FROM plants
		WHERE lat IS NOT NULL
		ORDER BY name, address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying markers: %w", err)
	}
	defer rows.Close()

	var markers []Marker

	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.Name, &m.Address, &m.Point.Lat, &m.Point.Lng); err != nil {
			return nil, fmt.Errorf("scanning marker: %w", err)
		}

		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating markers: %w", err)
	}

	return markers, nil
}
