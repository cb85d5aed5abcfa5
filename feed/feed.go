// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed reads tab-separated plant exports. The files come out of an
// ERP system in a Latin-1 family encoding, with a variable number of
// metadata lines before the real header row, so the header position is
// detected rather than assumed.
package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/plantmap/plantmap/geocode"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned when no row contains the expected columns.
var ErrNoHeader = errors.New("no header row found: expected a row with street and city columns")

// Column aliases, matched case-insensitively after trimming. The upper-case
// names are the ERP export codes, the lower-case ones cover hand-edited
// files.
var (
	nameAliases    = []string{"name1", "name"}
	streetAliases  = []string{"stras", "street"}
	postalAliases  = []string{"pstlz", "postal code", "postalcode", "zip"}
	cityAliases    = []string{"ort01", "city"}
	countryAliases = []string{"land1", "country"}
)

type columnIndex struct {
	name    int
	street  int
	postal  int
	city    int
	country int
}

// ParseFile reads the feed at path. encodingLabel selects the input
// encoding by IANA label; empty means Latin-1.
func ParseFile(path, encodingLabel string) ([]geocode.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}
	defer f.Close()

	records, err := Parse(f, encodingLabel)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", path, err)
	}

	return records, nil
}

// Parse reads a feed from r.
func Parse(r io.Reader, encodingLabel string) ([]geocode.Record, error) {
	decoded, err := decode(r, encodingLabel)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cols    columnIndex
		inBody  bool
		records []geocode.Record
	)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")

		if !inBody {
			idx, ok := detectHeader(fields)
			if ok {
				cols = idx
				inBody = true
			}

			continue
		}

		rec := geocode.Record{
			Name:       field(fields, cols.name),
			Street:     field(fields, cols.street),
			PostalCode: field(fields, cols.postal),
			City:       field(fields, cols.city),
			Country:    field(fields, cols.country),
		}

		// A row without a city cannot produce a usable address.
		if strings.TrimSpace(rec.City) == "" {
			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	if !inBody {
		return nil, ErrNoHeader
	}

	return records, nil
}

func decode(r io.Reader, encodingLabel string) (io.Reader, error) {
	if encodingLabel == "" {
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	}

	decoded, err := charset.NewReaderLabel(encodingLabel, r)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encodingLabel, err)
	}

	return decoded, nil
}

// The header row is the first row that names both a street and a city
// column; everything before it is export metadata.
func detectHeader(fields []string) (columnIndex, bool) {
	idx := columnIndex{name: -1, street: -1, postal: -1, city: -1, country: -1}

	for i, f := range fields {
		switch normalized := strings.ToLower(strings.TrimSpace(f)); {
		case matches(normalized, nameAliases):
			idx.name = i
		case matches(normalized, streetAliases):
			idx.street = i
		case matches(normalized, postalAliases):
			idx.postal = i
		case matches(normalized, cityAliases):
			idx.city = i
		case matches(normalized, countryAliases):
			idx.country = i
		}
	}

	return idx, idx.street >= 0 && idx.city >= 0
}

func matches(s string, aliases []string) bool {
	for _, a := range aliases {
		if s == a {
			return true
		}
	}

	return false
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}

	return strings.TrimSpace(fields[i])
}
