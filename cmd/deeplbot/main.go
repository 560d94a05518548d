// Package main is the entry point for the deeplbot CLI.
package main

import (
	"os"

	"github.com/deeplbot/deeplbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
