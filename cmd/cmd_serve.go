// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/gin-gonic/gin"
	"github.com/plantmap/plantmap/spatial"
	"github.com/plantmap/plantmap/store"
	"github.com/spf13/cobra"
)

var serveOpts = struct {
	DbPath string
	Listen string
}{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolved plants to a local map viewer",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		dbpath := filepath.Join(serveOpts.DbPath, "plantmap.duckdb")

		if _, err := os.Stat(dbpath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("database not found at %s - run 'resolve' first", dbpath)
		}

		db, err := sql.Open("duckdb", dbpath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		repo := store.NewPlantRepository(db)

		fmt.Printf("Plant map server starting on http://%s (local only)\n", serveOpts.Listen)

		return newRouter(repo).Run(serveOpts.Listen)
	},
}

func newRouter(repo store.PlantRepository) *gin.Engine {
	r := gin.Default()
	r.GET("/", serveIndex)
	r.GET("/api/markers", markersHandler(repo))
	r.GET("/api/markers/nearest", nearestHandler(repo))
	r.GET("/api/stats", statsHandler(repo))

	return r
}

type geoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   map[string]any `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func markersHandler(repo store.PlantRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		markers, err := repo.ResolvedMarkers()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}

		collection := geoJSONCollection{
			Type:     "FeatureCollection",
			Features: make([]geoJSONFeature, 0, len(markers)),
		}

		for _, m := range markers {
			collection.Features = append(collection.Features, geoJSONFeature{
				Type: "Feature",
				Geometry: map[string]any{
					"type": "Point",
					// GeoJSON order is longitude, latitude
					"coordinates": []float64{m.Point.Lng, m.Point.Lat},
				},
				Properties: map[string]any{
					"name":    m.Name,
					"address": m.Address,
				},
			})
		}

		ctx.JSON(http.StatusOK, collection)
	}
}

// nearestHandler returns the resolved plant closest to a query point, with
// the great-circle distance in meters.
func nearestHandler(repo store.PlantRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		lat, latErr := strconv.ParseFloat(ctx.Query("lat"), 64)
		lng, lngErr := strconv.ParseFloat(ctx.Query("lng"), 64)

		if latErr != nil || lngErr != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error": "lat and lng query parameters are required",
			})

			return
		}

		markers, err := repo.ResolvedMarkers()
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}

		if len(markers) == 0 {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "no resolved plants"})

			return
		}

		from := spatial.Point{Lat: lat, Lng: lng}
		nearest := markers[0]
		best := from.HaversineDistance(nearest.Point)

		for _, m := range markers[1:] {
			if d := from.HaversineDistance(m.Point); d < best {
				nearest, best = m, d
			}
		}

		ctx.JSON(http.StatusOK, gin.H{
			"name":      nearest.Name,
			"address":   nearest.Address,
			"point":     nearest.Point,
			"distanceM": best,
		})
	}
}

type countryStat struct {
	Country  string `json:"country"`
	Plants   int    `json:"plants"`
	Resolved int    `json:"resolved"`
}

// statsHandler summarizes the snapshot per country, straight off the
// repository's connection.
func statsHandler(repo store.PlantRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rows, err := repo.DB().Query(`
			SELECT country, count(*), count(lat)
			FROM plants
			GROUP BY country
			ORDER BY count(*) DESC, country
		`)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}
		defer rows.Close()

		stats := make([]countryStat, 0)

		var total, resolved int

		for rows.Next() {
			var s countryStat
			if err := rows.Scan(&s.Country, &s.Plants, &s.Resolved); err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

				return
			}

			total += s.Plants
			resolved += s.Resolved
			stats = append(stats, s)
		}

		if err := rows.Err(); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"total":     total,
			"resolved":  resolved,
			"pending":   total - resolved,
			"countries": stats,
		})
	}
}

func serveIndex(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <title>plantmap</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
  const map = L.map('map').setView([50, 10], 5);
  L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
    attribution: '&copy; OpenStreetMap contributors'
  }).addTo(map);
  fetch('/api/markers')
    .then(r => r.json())
    .then(data => {
      const layer = L.geoJSON(data, {
        onEachFeature: (feature, l) => {
          const p = feature.properties;
          l.bindPopup('<b>' + p.name + '</b><br>' + p.address);
        }
      }).addTo(map);
      if (data.features.length > 0) {
        map.fitBounds(layer.getBounds().pad(0.2));
      }
    });
</script>
</body>
</html>
`

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveOpts.DbPath,
		"db-path",
		"db",
		"Directory holding the local database",
	)
	serveCmd.Flags().StringVar(
		&serveOpts.Listen,
		"listen",
		"localhost:8080",
		"Address to listen on",
	)
}
