// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			"full address",
			Record{Street: "Main St", PostalCode: "10001", City: "New York", Country: "US"},
			"Main St, 10001 New York, US",
		},
		{
			"missing street and postal",
			Record{City: "Paris", Country: "FR"},
			",  Paris, FR",
		},
		{
			"whitespace trimmed per component",
			Record{Street: "  Main St ", PostalCode: " 10001", City: "New York\t", Country: " US "},
			"Main St, 10001 New York, US",
		},
		{
			"postal ingested as float",
			Record{Street: "Hauptstr. 1", PostalCode: "80331.0", City: "München", Country: "DE"},
			"Hauptstr. 1, 80331 München, DE",
		},
		{
			"postal with trailing zeros fraction",
			Record{Street: "Hauptstr. 1", PostalCode: "80331.00", City: "München", Country: "DE"},
			"Hauptstr. 1, 80331 München, DE",
		},
		{
			"non-zero fraction kept",
			Record{Street: "Rua A", PostalCode: "1000.5", City: "Lisboa", Country: "PT"},
			"Rua A, 1000.5 Lisboa, PT",
		},
		{
			"non-numeric postal with dot kept",
			Record{Street: "Rua A", PostalCode: "AB.0", City: "Lisboa", Country: "PT"},
			"Rua A, AB.0 Lisboa, PT",
		},
		{
			"empty record",
			Record{},
			",  , ",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Canonical(); got != tc.want {
				t.Fatalf("Canonical() = %q, want %q", got, tc.want)
			}
		})
	}
}

// Two records with equal address components must share one cache key even
// when their names differ.
func TestCanonicalDeterminism(t *testing.T) {
	r1 := Record{Name: "Acme", Street: "Main St", PostalCode: "10001", City: "New York", Country: "US"}
	r2 := Record{Name: "Acme3", Street: "Main St", PostalCode: "10001", City: "New York", Country: "US"}

	if r1.Canonical() != r2.Canonical() {
		t.Fatalf("records with equal components produced different keys: %q vs %q",
			r1.Canonical(), r2.Canonical())
	}

	r3 := Record{Street: "Main St", PostalCode: "10001.0", City: "New York", Country: "US"}
	if r1.Canonical() != r3.Canonical() {
		t.Fatalf("postal artifact changed the key: %q vs %q", r1.Canonical(), r3.Canonical())
	}
}
