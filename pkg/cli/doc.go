// Package cli provides common CLI utilities for the sheep command-line tool.
//
// This package includes:
//   - Configuration management (contexts for LLM/embedding providers)
//   - Output formatting (JSON, YAML, raw, with optional jq filtering)
//   - Request file loading (YAML/JSON)
//   - Terminal styles for human-facing output
//
// Configuration is stored in ~/.clawdbot/sheep/config.yaml, supporting
// multiple contexts similar to kubectl. Agent memory stores live next to
// it under ~/.clawdbot/sheep/<agentID>/.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("sheep")
//
//	ctx, err := cfg.GetCurrentContext()
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    JQ:     ".facts[].subject",
//	})
package cli
