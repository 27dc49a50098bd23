package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/clawdbot/sheep/pkg/cli"
	"github.com/clawdbot/sheep/pkg/embed"
	"github.com/clawdbot/sheep/pkg/kv"
	"github.com/clawdbot/sheep/pkg/llm"
	"github.com/clawdbot/sheep/pkg/memstore"
)

const appName = "sheep"

var (
	// Global flags
	agentFlag   string
	contextFlag string
	outputFlag  string
	jqFlag      string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sheep",
	Short: "Per-agent cognitive memory for conversational assistants",
	Long: `sheep - long-term memory for conversational agents.

Messages flow in, consolidation distills them into episodes, facts,
causal links, procedures and foresights, and recall answers questions
from what the agent remembers.

Agent stores live under ~/.clawdbot/sheep/<agentID>/. The active agent
is selected by --agent, SHEEP_AGENT_ID, or AGENT_ID, in that order.

LLM providers are configured as contexts, kubectl style:

  sheep config add-context dev --provider openai --api-key YOUR_KEY
  sheep config use-context dev

Without a usable context, consolidation and recall degrade to
pattern-only operation instead of failing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&agentFlag, "agent", "a", "", "agent id (defaults to $SHEEP_AGENT_ID, then $AGENT_ID)")
	rootCmd.PersistentFlags().StringVarP(&contextFlag, "context", "c", "", "configuration context (defaults to current)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "json", "output format (json, yaml, raw)")
	rootCmd.PersistentFlags().StringVar(&jqFlag, "jq", "", "jq expression applied to the result")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// resolveAgentID applies the agent selection order: flag, SHEEP_AGENT_ID,
// AGENT_ID, then "default".
func resolveAgentID() string {
	if agentFlag != "" {
		return agentFlag
	}
	if v := os.Getenv("SHEEP_AGENT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("AGENT_ID"); v != "" {
		return v
	}
	return "default"
}

// openStore opens the agent's on-disk store. The returned closer shuts
// down both the store handle and the underlying badger database.
func openStore(ctx context.Context) (*memstore.Store, func() error, error) {
	agentID := resolveAgentID()
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve home directory: %w", err)
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: paths.AgentDir(agentID)})
	if err != nil {
		return nil, nil, fmt.Errorf("open store for agent %q: %w", agentID, err)
	}
	store, err := memstore.Open(ctx, memstore.Config{
		AgentID:  agentID,
		Store:    db,
		Embedder: newEmbedder(),
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	closer := func() error {
		serr := store.Close()
		if derr := db.Close(); derr != nil {
			return derr
		}
		return serr
	}
	return store, closer, nil
}

// providerContext resolves the configured LLM context. Missing config
// or context yields (nil, nil): callers degrade rather than fail.
func providerContext() (*cli.Context, error) {
	cfg, err := cli.LoadConfig(appName)
	if err != nil {
		return nil, err
	}
	pc, err := cfg.ResolveContext(contextFlag)
	if err != nil {
		if contextFlag != "" {
			return nil, err
		}
		return nil, nil // no current context set
	}
	return pc, nil
}

// newLLMClient builds the completion client for the resolved context.
// Returns nil when no provider is configured.
func newLLMClient(ctx context.Context) (llm.Client, error) {
	pc, err := providerContext()
	if err != nil || pc == nil {
		return nil, err
	}
	switch pc.Provider {
	case "openai":
		var opts []llm.OpenAIOption
		if pc.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(pc.BaseURL))
		}
		if pc.Model != "" {
			opts = append(opts, llm.WithModel(pc.Model))
		}
		return llm.NewOpenAI(pc.APIKey, opts...), nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: pc.APIKey})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return llm.NewGemini(client, pc.Model), nil
	case "mock":
		return llm.NewMock(), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider %q in context %q", pc.Provider, pc.Name)
	}
}

// newEmbedder builds the embedding capability, or nil when the context
// does not configure one. Fact dedupe then falls back to SPO equality.
func newEmbedder() embed.Embedder {
	pc, err := providerContext()
	if err != nil || pc == nil || pc.EmbedModel == "" {
		return nil
	}
	var opts []embed.Option
	opts = append(opts, embed.WithModel(pc.EmbedModel))
	if pc.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(pc.BaseURL))
	}
	return embed.NewOpenAI(pc.APIKey, opts...)
}

// output writes a command result honoring --output and --jq.
func output(result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: cli.OutputFormat(outputFlag),
		JQ:     jqFlag,
	})
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
