// Package main is the entry point for the sheep CLI.
//
// Usage:
//
//	sheep [flags] <command> [args]
//
// Commands:
//
//	serve       - Run the HTTP memory server for one agent
//	remember    - Store a fact in long-term memory
//	recall      - Answer a question from memory
//	why         - Explain an outcome via stored causal links
//	forget      - Retract facts by id or filter
//	correct     - Replace a wrong remembered value
//	consolidate - Run the consolidation pipeline over a transcript
//	stats       - Show store entity counts
//	timeline    - Show a subject's belief timeline
//	backup      - Export the agent store to a snapshot archive
//	restore     - Import a snapshot archive
//	config      - Configuration management (contexts)
//	version     - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/clawdbot/sheep/cmd/sheep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
