// Package main provides the LeapCI command line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/leapci/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
