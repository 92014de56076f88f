// Package main is the entry point for the terravikctl operator CLI.
package main

import (
	"os"

	"github.com/KairamCabral/terravik-sub002/cmd/terravikctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
