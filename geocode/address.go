// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode implements the address resolution pipeline: canonical
// address keys, geocoding providers, the durable address cache, and the
// batch resolution driver.
package geocode

import "strings"

// Record is one address-bearing row from the plant feed. Fields are kept
// exactly as read; cleanup happens when building the canonical key.
type Record struct {
	Name       string
	Street     string
	PostalCode string
	City       string
	Country    string
}

// Canonical derives the cache key for a record.
//
// The template is "STREET, POSTAL CITY, COUNTRY". It must stay byte-stable:
// every previously written cache store was keyed with this exact template,
// and a change would silently orphan all existing entries.
func (r Record) Canonical() string {
	street := strings.TrimSpace(r.Street)
	postal := strings.TrimSpace(stripFractionArtifact(r.PostalCode))
	city := strings.TrimSpace(r.City)
	country := strings.TrimSpace(r.Country)

	return street + ", " + postal + " " + city + ", " + country
}

// Postal codes ingested from numeric columns arrive as "80331.0".
func stripFractionArtifact(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}

	for _, c := range s[:dot] {
		if c < '0' || c > '9' {
			return s
		}
	}

	frac := s[dot+1:]
	if frac == "" {
		return s[:dot]
	}

	for _, c := range frac {
		if c != '0' {
			return s
		}
	}

	return s[:dot]
}
