// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/plantmap/plantmap/spatial"
)

// Entry is one cache row: a canonical address and the outcome of its most
// recent lookup.
type Entry struct {
	Address     string
	Resolved    bool
	Point       spatial.Point
	AttemptedAt time.Time // only meaningful for unresolved entries
}

// Policy controls what the cache persists beyond successful resolutions.
type Policy struct {
	// PersistUnresolved writes failed lookups to the store so they are not
	// retried on every run. Historically failures were never persisted and
	// every run re-attempted them; that stays the default.
	PersistUnresolved bool

	// UnresolvedTTL is how long a persisted failure suppresses retries.
	// Zero means forever.
	UnresolvedTTL time.Duration

	// DryRun makes Flush and Clear no-ops.
	DryRun bool
}

// Cache is the durable mapping from canonical address to geocoding outcome.
// It is loaded fully into memory and flushed wholesale; the store file is a
// plain TSV (address, latitude, longitude) that can be edited or consumed
// by other tools.
type Cache struct {
	path    string
	policy  Policy
	entries map[string]Entry
}

// LoadCache reads the store at path. A missing store is not an error: the
// cache starts empty and the file is created on the first flush.
func LoadCache(path string, policy Policy) (*Cache, error) {
	c := &Cache{
		path:    path,
		policy:  policy,
		entries: make(map[string]Entry),
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}

		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	defer f.Close()

	if err := c.read(f); err != nil {
		return nil, fmt.Errorf("reading cache store %s: %w", path, err)
	}

	return c, nil
}

func (c *Cache) read(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		entry, err := parseRow(row)
		if err != nil {
			return err
		}

		c.entries[entry.Address] = entry
	}
}

// Resolved rows are (address, lat, lng). Unresolved rows, written only
// under PersistUnresolved, are (address, "", "", attempted-at RFC3339).
func parseRow(row []string) (Entry, error) {
	if len(row) < 3 {
		return Entry{}, fmt.Errorf("row for %q has %d fields, want at least 3", first(row), len(row))
	}

	entry := Entry{Address: row[0]}

	if row[1] == "" && row[2] == "" {
		if len(row) > 3 && row[3] != "" {
			at, err := time.Parse(time.RFC3339, row[3])
			if err != nil {
				return Entry{}, fmt.Errorf("parsing attempted-at for %q: %w", row[0], err)
			}

			entry.AttemptedAt = at
		}

		return entry, nil
	}

	lat, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing latitude for %q: %w", row[0], err)
	}

	lng, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing longitude for %q: %w", row[0], err)
	}

	entry.Resolved = true
	entry.Point = spatial.Point{Lat: lat, Lng: lng}

	return entry, nil
}

func first(row []string) string {
	if len(row) == 0 {
		return ""
	}

	return row[0]
}

// Lookup reports the cached outcome for an address. A persisted failure
// whose TTL has elapsed reads as a miss so it becomes a candidate again.
func (c *Cache) Lookup(address string) (Entry, bool) {
	entry, ok := c.entries[address]
	if !ok {
		return Entry{}, false
	}

	if !entry.Resolved {
		if !c.policy.PersistUnresolved {
			return Entry{}, false
		}

		if c.policy.UnresolvedTTL > 0 && time.Since(entry.AttemptedAt) >= c.policy.UnresolvedTTL {
			return Entry{}, false
		}
	}

	return entry, true
}

// Merge inserts or overwrites entries, last write wins per address.
func (c *Cache) Merge(entries []Entry) {
	for _, e := range entries {
		c.entries[e.Address] = e
	}
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Counts returns how many entries are resolved and unresolved.
func (c *Cache) Counts() (resolved, unresolved int) {
	for _, e := range c.entries {
		if e.Resolved {
			resolved++
		} else {
			unresolved++
		}
	}

	return resolved, unresolved
}

// ResolvedEntries returns the resolved entries sorted by address.
func (c *Cache) ResolvedEntries() []Entry {
	out := make([]Entry, 0, len(c.entries))

	for _, e := range c.entries {
		if e.Resolved {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	return out
}

// Flush writes the current entry set to the store, replacing the previous
// contents atomically: the new store is written to a temp file in the same
// directory, synced, and renamed over the old one, so an interruption never
// leaves a half-written store behind.
func (c *Cache) Flush() error {
	if c.policy.DryRun {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".geocode-cache-*")
	if err != nil {
		return fmt.Errorf("creating temp store: %w", err)
	}

	err = c.write(tmp)
	if err == nil {
		err = tmp.Sync()
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("writing cache store: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("replacing cache store: %w", err)
	}

	return nil
}

func (c *Cache) write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	addresses := make([]string, 0, len(c.entries))
	for addr := range c.entries {
		addresses = append(addresses, addr)
	}

	sort.Strings(addresses)

	for _, addr := range addresses {
		e := c.entries[addr]

		var row []string

		switch {
		case e.Resolved:
			row = []string{
				e.Address,
				strconv.FormatFloat(e.Point.Lat, 'f', -1, 64),
				strconv.FormatFloat(e.Point.Lng, 'f', -1, 64),
			}
		case c.policy.PersistUnresolved:
			row = []string{e.Address, "", "", e.AttemptedAt.UTC().Format(time.RFC3339)}
		default:
			continue
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// ExportTo writes a copy of the store to path with the same atomicity as
// Flush. Useful for handing the store to other tools.
func (c *Cache) ExportTo(path string) error {
	out := &Cache{path: path, policy: c.policy, entries: c.entries}

	return out.Flush()
}

// Clear deletes the durable store. The next LoadCache starts empty.
func (c *Cache) Clear() error {
	if c.policy.DryRun {
		return nil
	}

	c.entries = make(map[string]Entry)

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache store: %w", err)
	}

	return nil
}
