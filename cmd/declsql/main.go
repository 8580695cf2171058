// Package main provides the entry point for the declsql CLI tool.
package main

import (
	"os"

	"github.com/declsql/declsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
