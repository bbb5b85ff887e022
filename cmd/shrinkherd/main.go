// Package main is the entry point for the shrinkherd batch encoder.
package main

import (
	"os"

	"github.com/gwlsn/shrinkherd/cmd/shrinkherd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
