package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management (contexts)",
	Long: `Manage provider contexts, kubectl style.

A context names an LLM provider plus its credentials. The current
context is used by recall, consolidation, and serve unless overridden
with --context.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(appName)
		if err != nil {
			return err
		}
		type row struct {
			Name     string `json:"name"`
			Provider string `json:"provider"`
			Model    string `json:"model,omitempty"`
			Current  bool   `json:"current"`
		}
		var rows []row
		for _, name := range cfg.ListContexts() {
			c, _ := cfg.GetContext(name)
			rows = append(rows, row{
				Name:     name,
				Provider: c.Provider,
				Model:    c.Model,
				Current:  name == cfg.CurrentContext,
			})
		}
		return output(rows)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a context (current by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(appName)
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		c, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		// Never print the key itself.
		redacted := *c
		if redacted.APIKey != "" {
			redacted.APIKey = "********"
		}
		return output(redacted)
	},
}

var configAddCmd = &cobra.Command{
	Use:     "add-context <name>",
	Short:   "Add or update a context",
	Example: `  sheep config add-context dev --provider openai --api-key $OPENAI_API_KEY --model gpt-4o-mini`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(appName)
		if err != nil {
			return err
		}
		provider, _ := cmd.Flags().GetString("provider")
		apiKey, _ := cmd.Flags().GetString("api-key")
		baseURL, _ := cmd.Flags().GetString("base-url")
		model, _ := cmd.Flags().GetString("model")
		embedModel, _ := cmd.Flags().GetString("embed-model")

		if err := cfg.AddContext(args[0], &cli.Context{
			Provider:   provider,
			APIKey:     apiKey,
			BaseURL:    baseURL,
			Model:      model,
			EmbedModel: embedModel,
		}); err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(args[0]); err != nil {
				return err
			}
		}
		fmt.Printf("Context %q saved\n", args[0])
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(appName)
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Current context set to %q\n", args[0])
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(appName)
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Printf("Context %q deleted\n", args[0])
		return nil
	},
}

func init() {
	configAddCmd.Flags().String("provider", "", "LLM provider (openai, gemini, mock)")
	configAddCmd.Flags().String("api-key", "", "provider API key")
	configAddCmd.Flags().String("base-url", "", "API base URL override")
	configAddCmd.Flags().String("model", "", "completion model name")
	configAddCmd.Flags().String("embed-model", "", "embedding model name (empty disables embeddings)")

	configCmd.AddCommand(configListCmd, configShowCmd, configAddCmd, configUseCmd, configDeleteCmd)
	rootCmd.AddCommand(configCmd)
}
