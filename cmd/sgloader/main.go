package main

import (
	"os"

	"github.com/wonny/sgloader/cmd/sgloader/commands"
)

// main is the entry point for the screener loader CLI
// ⭐ single CLI entry point: go run ./cmd/sgloader [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
