// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"

	"github.com/plantmap/plantmap/spatial"
)

// Result is the outcome of a single lookup. An unmatched address is not an
// error: providers report it with Found=false so one bad address never
// aborts a batch.
type Result struct {
	Found       bool
	Point       spatial.Point
	Provider    string
	DisplayName string
}

// Geocoder resolves a canonical address string to a coordinate.
//
// Implementations return a non-nil error only when the context is done;
// upstream failures and empty results come back as Found=false.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (Result, error)
}

type chainGeocoder struct {
	providers []Geocoder
}

// Chain builds a geocoder that tries each provider in order and returns the
// first match. Providers after the first are fallbacks for addresses the
// primary could not resolve.
func Chain(providers ...Geocoder) Geocoder {
	return &chainGeocoder{providers: providers}
}

func (c *chainGeocoder) Resolve(ctx context.Context, address string) (Result, error) {
	for _, p := range c.providers {
		res, err := p.Resolve(ctx, address)
		if err != nil {
			return Result{}, err
		}

		if res.Found {
			return res, nil
		}
	}

	return Result{}, nil
}
