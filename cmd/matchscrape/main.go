// Package main is the entry point for the matchscrape CLI.
package main

import (
	"os"

	"github.com/jmylchreest/matchscrape/cmd/matchscrape/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
