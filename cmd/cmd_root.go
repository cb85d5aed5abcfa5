// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "plantmap",
	Short: "geocode plant exports and serve them on a map",
	Long: `
plantmap loads a tab-separated plant export, resolves each plant address to
coordinates through a persistent geocode cache, and serves the resolved set
to a local map viewer. Already-resolved addresses are answered from the
cache, so interrupted runs pick up where they left off.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
