// Package main provides the leapingest CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapingest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
