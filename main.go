// Copyright 2026 The PlantMap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/plantmap/plantmap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
