package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/cli"
	"github.com/clawdbot/sheep/pkg/consolidate"
	"github.com/clawdbot/sheep/pkg/extract"
	"github.com/clawdbot/sheep/pkg/llm"
)

// consolidateRequest is the transcript file format: a list of messages,
// optionally scoped to sessions.
type consolidateRequest struct {
	Messages []extract.Message `json:"messages" yaml:"messages"`
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run the consolidation pipeline over a transcript",
	Long: `Consolidate a transcript into episodes, facts, causal links,
procedures and foresights.

The transcript is a YAML or JSON file (or stdin with -f -):

  messages:
    - role: user
      content: My name is Alex Chen
      sessionId: s1
    - role: assistant
      content: Nice to meet you
      sessionId: s1

Without a configured LLM context the run degrades to pattern-only
extraction and reports degraded: true.`,
	Example: `  sheep consolidate -f transcript.yaml
  cat transcript.json | sheep consolidate -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sleep, _ := cmd.Flags().GetBool("sleep")
		if file == "" {
			return fmt.Errorf("transcript file is required (-f)")
		}

		var req consolidateRequest
		if file == "-" {
			if err := cli.LoadRequestFromStdin(&req); err != nil {
				return err
			}
		} else if err := cli.LoadRequest(file, &req); err != nil {
			return err
		}
		if len(req.Messages) == 0 {
			return fmt.Errorf("transcript has no messages")
		}

		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		pipeline := consolidate.New(consolidate.Config{
			Store: store,
			Bootstrap: func(ctx context.Context) (llm.Client, error) {
				return newLLMClient(ctx)
			},
			Logger:       slog.Default(),
			SleepEnabled: sleep,
		})
		res, err := pipeline.Run(cmd.Context(), req.Messages)
		if err != nil {
			return err
		}
		return output(res)
	},
}

func init() {
	consolidateCmd.Flags().StringP("file", "f", "", "transcript file (YAML or JSON, - for stdin)")
	consolidateCmd.Flags().Bool("sleep", false, "enable the LLM sleep pass")

	rootCmd.AddCommand(consolidateCmd)
}
