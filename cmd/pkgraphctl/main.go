// Package main is the entry point for pkgraphctl, the operator CLI.
package main

import (
	"os"

	"github.com/mityayka1/pkgraph/cmd/pkgraphctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
