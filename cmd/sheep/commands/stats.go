package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clawdbot/sheep/pkg/cli"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store entity counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if outputFlag != "raw" && jqFlag == "" && !cmd.Flags().Changed("output") {
			styles := cli.NewStyles(cli.DefaultTheme)
			fmt.Println(styles.StatBlock("memory: "+st.AgentID, []cli.KV{
				{Label: "episodes", Value: strconv.Itoa(st.Episodes)},
				{Label: "active facts", Value: strconv.Itoa(st.ActiveFacts)},
				{Label: "retracted facts", Value: strconv.Itoa(st.RetractedFacts)},
				{Label: "causal links", Value: strconv.Itoa(st.CausalLinks)},
				{Label: "procedures", Value: strconv.Itoa(st.Procedures)},
				{Label: "foresights", Value: strconv.Itoa(st.Foresights)},
				{Label: "preferences", Value: strconv.Itoa(st.Preferences)},
				{Label: "relationships", Value: strconv.Itoa(st.Relationships)},
				{Label: "core memories", Value: strconv.Itoa(st.CoreMemories)},
				{Label: "changes", Value: strconv.Itoa(st.Changes)},
				{Label: "runs", Value: strconv.Itoa(st.Runs)},
				{Label: "total weight", Value: cli.FormatBytesInt(st.TotalWeight)},
			}))
			return nil
		}
		return output(st)
	},
}

var timelineCmd = &cobra.Command{
	Use:     "timeline <subject>",
	Short:   "Show a subject's belief timeline",
	Example: `  sheep timeline user`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		events, err := store.SubjectTimeline(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output(events)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, timelineCmd)
}
