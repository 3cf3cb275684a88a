// Package main is the entry point for the hfactory CLI.
package main

import (
	"os"

	"github.com/fatimatofatima/hyper-factory/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
