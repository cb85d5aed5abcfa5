// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// The display name of the API key provisioned for this tool in the
// project's key inventory.
const mapsKeyDisplayName = "PlantMap Geocoding Key"

// googleMapsAPIKey returns the Maps API key from the environment, falling
// back to looking it up through Application Default Credentials.
func googleMapsAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
		return key, nil
	}

	log.Println("GOOGLE_MAPS_API_KEY is not set, attempting to retrieve via ADC...")

	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	if creds.ProjectID == "" {
		return "", errors.New("no project ID in default credentials")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	req := &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", creds.ProjectID),
	}

	it := client.ListKeys(ctx, req)

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != mapsKeyDisplayName {
			continue
		}

		// ListKeys redacts the KeyString; GetKeyString returns the secret.
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key %q found but its key string is empty", mapsKeyDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key %q not found in project %s", mapsKeyDisplayName, creds.ProjectID)
}
