// Package main provides the entry point for the dirstore CLI.
package main

import (
	"os"

	"github.com/treefort-labs/dirstore/cmd/dirstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
