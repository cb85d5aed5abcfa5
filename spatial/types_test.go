// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	newYork := Point{Lat: 40.7128, Lng: -74.006}
	paris := Point{Lat: 48.8566, Lng: 2.3522}

	got := newYork.HaversineDistance(paris)

	// Great-circle distance New York - Paris is about 5,837 km.
	if math.Abs(got-5837e3) > 50e3 {
		t.Fatalf("distance = %.0f m, want about 5837 km", got)
	}

	if d := newYork.HaversineDistance(newYork); d != 0 {
		t.Fatalf("distance to self = %f, want 0", d)
	}
}

func TestCells(t *testing.T) {
	p := Point{Lat: 48.1371, Lng: 11.5754}

	cells, err := Cells(p)
	if err != nil {
		t.Fatalf("Cells failed: %v", err)
	}

	for res, cell := range map[int]int64{
		4: cells.Res4,
		5: cells.Res5,
		6: cells.Res6,
		7: cells.Res7,
		8: cells.Res8,
	} {
		if cell == 0 {
			t.Errorf("res %d cell is zero", res)
		}
	}

	// Cells at different resolutions must differ.
	if cells.Res4 == cells.Res8 {
		t.Error("res 4 and res 8 cells are identical")
	}

	nearby, err := Cells(Point{Lat: 48.1372, Lng: 11.5755})
	if err != nil {
		t.Fatalf("Cells failed: %v", err)
	}

	// Two points meters apart share the coarse cell.
	if cells.Res4 != nearby.Res4 {
		t.Error("nearby points should share the res 4 cell")
	}
}
