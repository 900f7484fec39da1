// Package main provides the entry point for the codewiki CLI.
package main

import (
	"os"

	"github.com/codewiki-dev/codewiki/cmd/codewiki/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
