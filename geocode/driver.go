// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/plantmap/plantmap/spatial"
)

// Status is the terminal state of a resolution pass.
type Status string

const (
	// StatusCompleted means every pending address was attempted.
	StatusCompleted Status = "completed"

	// StatusCancelled means the pass stopped early; the partial result is
	// valid and already flushed, and the remaining addresses are picked up
	// again on the next pass.
	StatusCancelled Status = "cancelled"
)

// DefaultBatchSize is how many pending addresses are attempted between
// cache flushes. An interruption loses at most one batch of work.
const DefaultBatchSize = 25

// ProgressFunc is invoked after every attempted address. It is a pure
// side channel for observability; done counts attempts so far out of total
// pending, and address is the item just attempted.
type ProgressFunc func(done, total int, address string)

// ResolvedPlant pairs an input record with its coordinates.
type ResolvedPlant struct {
	Record Record
	Point  spatial.Point
}

// Metrics tracks what a resolution pass did.
type Metrics struct {
	Records    int // input records
	Distinct   int // distinct canonical addresses
	Cached     int // addresses answered from the cache
	Lookups    int // upstream lookups issued
	Resolved   int // lookups that produced a coordinate
	Unresolved int // lookups that did not
}

// Merge combines the metrics of another batch or pass into this one.
func (m *Metrics) Merge(other *Metrics) *Metrics {
	if other == nil {
		return m
	}

	m.Records += other.Records
	m.Distinct += other.Distinct
	m.Cached += other.Cached
	m.Lookups += other.Lookups
	m.Resolved += other.Resolved
	m.Unresolved += other.Unresolved

	return m
}

// Outcome is the result of a resolution pass.
type Outcome struct {
	Status   Status
	Resolved []ResolvedPlant
	Metrics  Metrics
}

// Resolver drives pending addresses through a Geocoder in batches, merging
// results into the cache and flushing after every batch.
type Resolver struct {
	mu sync.Mutex

	cache    *Cache
	geocoder Geocoder

	// BatchSize bounds how much work an interruption can lose. Values
	// below 1 fall back to DefaultBatchSize.
	BatchSize int

	// OnProgress, when set, is called after every attempted address.
	OnProgress ProgressFunc
}

// NewResolver creates a resolver over a cache and a geocoding provider.
func NewResolver(cache *Cache, geocoder Geocoder) *Resolver {
	return &Resolver{
		cache:     cache,
		geocoder:  geocoder,
		BatchSize: DefaultBatchSize,
	}
}

// ResolveAll resolves every record's address, from the cache when possible
// and through the geocoder otherwise.
//
// Only one pass runs at a time: the internal lock serializes overlapping
// invocations so two passes never race on the cache store. Cancellation is
// cooperative, checked between addresses; a cancelled pass flushes what it
// merged so far and returns a partial outcome with StatusCancelled rather
// than an error. Persistence failures are returned as errors.
func (r *Resolver) ResolveAll(ctx context.Context, records []Record) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := &Outcome{Status: StatusCompleted}
	outcome.Metrics.Records = len(records)

	// Partition distinct canonical addresses into cached and pending,
	// preserving input order for predictable progress output.
	keys := make([]string, len(records))
	seen := make(map[string]bool, len(records))

	var pending []string

	for i, rec := range records {
		key := rec.Canonical()
		keys[i] = key

		if seen[key] {
			continue
		}

		seen[key] = true
		outcome.Metrics.Distinct++

		if _, ok := r.cache.Lookup(key); ok {
			outcome.Metrics.Cached++
		} else {
			pending = append(pending, key)
		}
	}

	batchSize := r.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	total := len(pending)
	done := 0

	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)

		batch := make([]Entry, 0, end-start)

		var (
			batchMetrics Metrics
			cancelled    bool
		)

		for _, addr := range pending[start:end] {
			if ctx.Err() != nil {
				cancelled = true

				break
			}

			res, err := r.geocoder.Resolve(ctx, addr)
			if err != nil {
				// Providers only error on context cancellation.
				cancelled = true

				break
			}

			batchMetrics.Lookups++

			entry := Entry{Address: addr}
			if res.Found {
				entry.Resolved = true
				entry.Point = res.Point
				batchMetrics.Resolved++
			} else {
				entry.AttemptedAt = time.Now()
				batchMetrics.Unresolved++
			}

			batch = append(batch, entry)
			done++

			if r.OnProgress != nil {
				r.OnProgress(done, total, addr)
			}
		}

		r.cache.Merge(batch)
		outcome.Metrics.Merge(&batchMetrics)

		if cancelled {
			outcome.Status = StatusCancelled

			break
		}

		if err := r.cache.Flush(); err != nil {
			return nil, fmt.Errorf("flushing cache after batch: %w", err)
		}
	}

	// Final unconditional flush covers the cancelled path and runs with
	// zero pending work, too.
	if err := r.cache.Flush(); err != nil {
		return nil, fmt.Errorf("flushing cache: %w", err)
	}

	for i, rec := range records {
		entry, ok := r.cache.Lookup(keys[i])
		if !ok || !entry.Resolved {
			continue
		}

		outcome.Resolved = append(outcome.Resolved, ResolvedPlant{
			Record: rec,
			Point:  entry.Point,
		})
	}

	return outcome, nil
}
