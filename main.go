// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors
//
// luxctl - Lux LED strip protocol tool
//
// A CLI tool for monitoring, configuring and flashing Lux nodes, and for
// running a simulated node.

package main

import (
	"os"

	"github.com/zbanks/radiance-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
