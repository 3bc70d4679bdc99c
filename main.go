// Package main is the entry point for eventrecon.
package main

import (
	"os"

	"eventrecon/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
