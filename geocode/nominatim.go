// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinDelay is the minimum spacing between Nominatim calls. The usage
// policy demands at least one second; we leave some slack.
const DefaultMinDelay = 1100 * time.Millisecond

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder resolves addresses through the public Nominatim API.
//
// The limiter is shared by every caller of this instance, so the minimum
// inter-call interval holds even when resolution passes overlap.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimGeocoder creates a Nominatim provider enforcing minDelay
// between consecutive upstream calls. The user agent identifies the tool as
// the Nominatim usage policy requires.
func NewNominatimGeocoder(userAgent string, minDelay time.Duration) *NominatimGeocoder {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}

	return &NominatimGeocoder{
		baseURL:   nominatimBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve looks up a single address. It blocks on the shared limiter first,
// so N consecutive calls take at least (N-1) times the configured delay.
func (g *NominatimGeocoder) Resolve(ctx context.Context, address string) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, err
	}

	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		log.Printf("nominatim request failed for %q: %v", address, err)

		return Result{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("nominatim returned status %d for %q", resp.StatusCode, address)

		return Result{}, nil
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("nominatim decoding response for %q: %v", address, err)

		return Result{}, nil
	}

	if len(results) == 0 {
		return Result{}, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)

	if latErr != nil || lngErr != nil {
		log.Printf("nominatim returned unparseable coordinates for %q", address)

		return Result{}, nil
	}

	res := Result{
		Found:       true,
		Provider:    "nominatim",
		DisplayName: results[0].DisplayName,
	}
	res.Point.Lat = lat
	res.Point.Lng = lng

	return res, nil
}
