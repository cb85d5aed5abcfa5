// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleGeocoder uses the Google Maps Geocoding API. It is intended as a
// fallback for addresses the primary provider cannot resolve, so it carries
// no limiter of its own.
type GoogleGeocoder struct {
	apiKey     string
	httpClient *http.Client
}

// NewGoogleGeocoder creates a new Google Maps geocoder.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"` // OK, ZERO_RESULTS, etc.
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (Result, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		log.Printf("google maps request failed for %q: %v", address, err)

		return Result{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("google maps returned status %d for %q", resp.StatusCode, address)

		return Result{}, nil
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		log.Printf("google maps decoding response for %q: %v", address, err)

		return Result{}, nil
	}

	if gmResp.Status != "OK" || len(gmResp.Results) == 0 {
		return Result{}, nil
	}

	res := Result{
		Found:       true,
		Provider:    "google_maps",
		DisplayName: gmResp.Results[0].FormattedAddress,
	}
	res.Point.Lat = gmResp.Results[0].Geometry.Location.Lat
	res.Point.Lng = gmResp.Results[0].Geometry.Location.Lng

	return res, nil
}
