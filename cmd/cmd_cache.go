// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/plantmap/plantmap/geocode"
	"github.com/spf13/cobra"
)

var cachePath string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the address-geocode cache store",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many addresses the cache store holds",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cache, err := geocode.LoadCache(cachePath, geocode.Policy{})
		if err != nil {
			return err
		}

		resolved, unresolved := cache.Counts()
		fmt.Printf("%s: %d entries (%d resolved, %d unresolved)\n",
			cachePath, cache.Len(), resolved, unresolved)

		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export <out.tsv>",
	Short: "Write a validated copy of the cache store",
	Long: `Reads the cache store, validating every row, and writes a fresh copy to
the given path. The store itself is a plain tab-separated file and can also
be copied directly; export is useful to confirm it parses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cache, err := geocode.LoadCache(cachePath, geocode.Policy{PersistUnresolved: true})
		if err != nil {
			return err
		}

		if err := cache.ExportTo(args[0]); err != nil {
			return err
		}

		fmt.Printf("Exported %d entries to %s\n", cache.Len(), args[0])

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cache store",
	Long:  `Deletes the durable cache store. The next resolution pass starts from an empty cache and re-queries every address.`,
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cache, err := geocode.LoadCache(cachePath, geocode.Policy{})
		if err != nil {
			return err
		}

		n := cache.Len()
		if err := cache.Clear(); err != nil {
			return err
		}

		fmt.Printf("Removed %s (%d entries)\n", cachePath, n)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.PersistentFlags().StringVar(
		&cachePath,
		"cache",
		"geocode-cache.tsv",
		"Path of the durable address-geocode cache store",
	)
}
