// Copyright 2026 The PlantMap Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the geographic primitives shared by the geocoding
// pipeline and the analytical store.
package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// CellSet holds the H3 cell of a point at the resolutions the store indexes.
// Resolution 4 is roughly metropolitan scale, 8 roughly block scale.
type CellSet struct {
	Res4 int64
	Res5 int64
	Res6 int64
	Res7 int64
	Res8 int64
}

// Cells computes the H3 cell set for a point.
func Cells(p Point) (CellSet, error) {
	var set CellSet

	latLng := h3.NewLatLng(p.Lat, p.Lng)

	for res := 4; res <= 8; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return CellSet{}, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		switch res {
		case 4:
			set.Res4 = int64(cell)
		case 5:
			set.Res5 = int64(cell)
		case 6:
			set.Res6 = int64(cell)
		case 7:
			set.Res7 = int64(cell)
		case 8:
			set.Res8 = int64(cell)
		}
	}

	return set, nil
}
