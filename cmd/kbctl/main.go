// Package main is the entry point for the kbctl admin tool.
package main

import (
	"os"

	"github.com/portfolio-ai/concierge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
