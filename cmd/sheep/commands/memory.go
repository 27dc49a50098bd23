package commands

import (
	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/recall"
	"github.com/clawdbot/sheep/pkg/tools"
)

// The memory commands are the CLI face of the agent tool kit:
// remember, recall, why, forget, correct.

var rememberCmd = &cobra.Command{
	Use:   "remember <subject> <predicate> <object>",
	Short: "Store a fact in long-term memory",
	Example: `  sheep remember user works_at TechCorp
  sheep remember user has_pet Mochi --confidence 0.8`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		kit := tools.NewKit(store, nil)
		res, err := kit.Remember(cmd.Context(), tools.RememberArgs{
			Subject:    args[0],
			Predicate:  args[1],
			Object:     args[2],
			Confidence: confidence,
		})
		if err != nil {
			return err
		}
		return output(res)
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <question>",
	Short: "Answer a question from memory",
	Example: `  sheep recall "What is my name?"
  sheep recall "Where do I work?" --mode memory`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		session, _ := cmd.Flags().GetString("session")
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		client, err := newLLMClient(cmd.Context())
		if err != nil {
			return err
		}
		engine := recall.New(recall.Config{
			Store:   store,
			Client:  client,
			Version: version,
		})
		ans := engine.Recall(cmd.Context(), recall.Request{
			Query:     args[0],
			SessionID: session,
			Mode:      recall.Mode(mode),
		})
		return output(ans)
	},
}

var whyCmd = &cobra.Command{
	Use:   "why <effect>",
	Short: "Explain an outcome via stored causal links",
	Example: `  sheep why "quit the gym"
  sheep why "moved to Seattle" --max-depth 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		kit := tools.NewKit(store, nil)
		res, err := kit.Why(cmd.Context(), args[0], maxDepth)
		if err != nil {
			return err
		}
		return output(res)
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget [factID]",
	Short: "Retract facts by id or by subject/predicate filter",
	Example: `  sheep forget fact-1234 --reason "user asked"
  sheep forget --subject user --predicate has_pet --reason "pets rehomed"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := tools.ForgetArgs{}
		if len(args) == 1 {
			a.FactID = args[0]
		}
		a.Subject, _ = cmd.Flags().GetString("subject")
		a.Predicate, _ = cmd.Flags().GetString("predicate")
		a.Reason, _ = cmd.Flags().GetString("reason")

		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := tools.NewKit(store, nil).Forget(cmd.Context(), a)
		if err != nil {
			return err
		}
		return output(res)
	},
}

var correctCmd = &cobra.Command{
	Use:     "correct <subject> <predicate> <oldValue> <newValue>",
	Short:   "Replace a wrong remembered value",
	Example: `  sheep correct user works_at Google GitHub`,
	Args:    cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		res, err := tools.NewKit(store, nil).Correct(cmd.Context(), tools.CorrectArgs{
			Subject:   args[0],
			Predicate: args[1],
			OldValue:  args[2],
			NewValue:  args[3],
		})
		if err != nil {
			return err
		}
		return output(res)
	},
}

func init() {
	rememberCmd.Flags().Float64("confidence", 0, "confidence in (0,1]; defaults to 0.9")

	recallCmd.Flags().String("mode", "memory", "recall mode (memory, hybrid)")
	recallCmd.Flags().String("session", "", "session id for cache scoping")

	whyCmd.Flags().Int("max-depth", 0, "causal chain length cap (default 5)")

	forgetCmd.Flags().String("subject", "", "retract active facts with this subject")
	forgetCmd.Flags().String("predicate", "", "retract active facts with this predicate")
	forgetCmd.Flags().String("reason", "", "why the facts are forgotten (required)")
	_ = forgetCmd.MarkFlagRequired("reason")

	rootCmd.AddCommand(rememberCmd, recallCmd, whyCmd, forgetCmd, correctCmd)
}
