// Package main provides the leaptmpl command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/leaptmpl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
