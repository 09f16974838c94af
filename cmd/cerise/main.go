// Package main provides the entry point for the Cerise runtime CLI.
package main

import (
	"fmt"
	"os"

	"github.com/vmoranv/cerise/cmd/cerise/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
