// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/mattn/go-isatty"
	"github.com/plantmap/plantmap/feed"
	"github.com/plantmap/plantmap/geocode"
	"github.com/plantmap/plantmap/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type resolveOptions struct {
	CachePath         string
	DbPath            string
	Encoding          string
	BatchSize         int
	MinDelay          time.Duration
	Limit             int
	PersistUnresolved bool
	UnresolvedTTL     time.Duration
	GoogleFallback    bool
	DryRun            bool
}

var resolveOpts = &resolveOptions{}

var resolveCmd = &cobra.Command{
	Use:   "resolve <feed.txt>",
	Short: "Geocode every plant in a feed and store the resolved set",
	Long: `Parses the tab-separated plant export, resolves each distinct address
through the geocode cache (querying the upstream service only for addresses
not yet cached), and backfills the local database with the coordinates.

The cache is flushed after every batch, so an interrupted run loses at most
one batch of lookups and resumes from the cache on the next invocation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := feed.ParseFile(args[0], resolveOpts.Encoding)
		if err != nil {
			return err
		}

		if resolveOpts.Limit > 0 && len(records) > resolveOpts.Limit {
			records = records[:resolveOpts.Limit]
		}

		if len(records) == 0 {
			log.Println("Feed contains no address-bearing rows, nothing to do")

			return nil
		}

		cache, err := geocode.LoadCache(resolveOpts.CachePath, geocode.Policy{
			PersistUnresolved: resolveOpts.PersistUnresolved,
			UnresolvedTTL:     resolveOpts.UnresolvedTTL,
			DryRun:            resolveOpts.DryRun,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		geocoder, err := buildGeocoder(ctx)
		if err != nil {
			return err
		}

		resolver := geocode.NewResolver(cache, geocoder)
		resolver.BatchSize = resolveOpts.BatchSize

		var bar *progressbar.ProgressBar

		resolver.OnProgress = func(done, total int, address string) {
			if bar == nil {
				log.Printf("[%d/%d] Geocoded %s", done, total, address)

				return
			}

			if bar.GetMax() != total {
				bar.ChangeMax(total)
			}

			bar.Describe(address)
			_ = bar.Add(1)
		}

		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(records),
				progressbar.OptionSetDescription("Geocoding"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		outcome, err := resolver.ResolveAll(ctx, records)

		if bar != nil {
			_ = bar.Finish()
		}

		if err != nil {
			return err
		}

		if outcome.Status == geocode.StatusCancelled {
			log.Println("Interrupted - partial progress flushed, rerun to resume")
		}

		log.Printf(
			"Resolution pass %s - %d records, %d distinct addresses, %d cached, %d lookups (%d resolved, %d unresolved)",
			outcome.Status,
			outcome.Metrics.Records,
			outcome.Metrics.Distinct,
			outcome.Metrics.Cached,
			outcome.Metrics.Lookups,
			outcome.Metrics.Resolved,
			outcome.Metrics.Unresolved,
		)

		if resolveOpts.DryRun {
			log.Printf("Dry run - skipping database update (%d plants resolved)", len(outcome.Resolved))

			return nil
		}

		return storeSnapshot(records, cache)
	},
}

func buildGeocoder(ctx context.Context) (geocode.Geocoder, error) {
	userAgent := fmt.Sprintf("plantmap/%s (+https://github.com/plantmap/plantmap)", Version)
	nominatim := geocode.NewNominatimGeocoder(userAgent, resolveOpts.MinDelay)

	if !resolveOpts.GoogleFallback {
		return nominatim, nil
	}

	key, err := googleMapsAPIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("google fallback requested but no API key available: %w", err)
	}

	return geocode.Chain(nominatim, geocode.NewGoogleGeocoder(key)), nil
}

func storeSnapshot(records []geocode.Record, cache *geocode.Cache) error {
	if err := os.MkdirAll(resolveOpts.DbPath, 0o750); err != nil {
		return fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(resolveOpts.DbPath, "plantmap.duckdb"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	repo := store.NewPlantRepository(db)
	if err := repo.CreateSchema(); err != nil {
		return err
	}

	if err := repo.ReplaceAll(records); err != nil {
		return err
	}

	affected, err := repo.BackfillCoordinates(cache.ResolvedEntries())
	if err != nil {
		return err
	}

	pending, err := repo.CountPending()
	if err != nil {
		return err
	}

	log.Printf("Backfilled %d plants with coordinates (%d still pending)", affected, pending)

	return nil
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(
		&resolveOpts.CachePath,
		"cache",
		"geocode-cache.tsv",
		"Path of the durable address-geocode cache store",
	)
	resolveCmd.Flags().StringVar(
		&resolveOpts.DbPath,
		"db-path",
		"db",
		"Directory holding the local database",
	)
	resolveCmd.Flags().StringVar(
		&resolveOpts.Encoding,
		"encoding",
		"",
		"Input encoding label of the feed (default Latin-1)",
	)
	resolveCmd.Flags().IntVar(
		&resolveOpts.BatchSize,
		"batch-size",
		geocode.DefaultBatchSize,
		"Pending addresses attempted between cache flushes",
	)
	resolveCmd.Flags().DurationVar(
		&resolveOpts.MinDelay,
		"min-delay",
		geocode.DefaultMinDelay,
		"Minimum interval between upstream lookups",
	)
	resolveCmd.Flags().IntVar(
		&resolveOpts.Limit,
		"limit",
		0,
		"Only process the first N feed rows (0 = all)",
	)
	resolveCmd.Flags().BoolVar(
		&resolveOpts.PersistUnresolved,
		"persist-unresolved",
		false,
		"Persist failed lookups so they are not retried every run",
	)
	resolveCmd.Flags().DurationVar(
		&resolveOpts.UnresolvedTTL,
		"unresolved-ttl",
		7*24*time.Hour,
		"How long a persisted failure suppresses retries (0 = forever)",
	)
	resolveCmd.Flags().BoolVar(
		&resolveOpts.GoogleFallback,
		"google-fallback",
		false,
		"Retry unresolved addresses through the Google Maps geocoder",
	)
	resolveCmd.Flags().BoolVar(
		&resolveOpts.DryRun,
		"dry-run",
		false,
		"Don't persist any change",
	)
}
