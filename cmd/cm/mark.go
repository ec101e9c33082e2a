package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	markHelpful bool
	markHarmful bool
	markReason  string
	markContext string
	markSession string
)

var markCmd = &cobra.Command{
	Use:   "mark <bullet-id>",
	Short: "Record helpful or harmful feedback for a bullet",
	Long: `Record one feedback event for a bullet.

Helpful feedback can promote the bullet (candidate -> established -> proven).
Harmful feedback weighs four times as much and can demote it; a rule whose
harmful share grows too large is deprecated and replaced by an "AVOID:"
anti-pattern.

Examples:
  cm mark b-1a2b3c4d5e6f --helpful
  cm mark b-1a2b3c4d5e6f --harmful --reason "broke the build on CI"`,
	Args: cobra.ExactArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.Flags().BoolVar(&markHelpful, "helpful", false, "Mark as helpful")
	markCmd.Flags().BoolVar(&markHarmful, "harmful", false, "Mark as harmful")
	markCmd.Flags().StringVar(&markReason, "reason", "", "Why the bullet helped or hurt")
	markCmd.Flags().StringVar(&markContext, "context", "", "What the agent was doing")
	markCmd.Flags().StringVar(&markSession, "session", "", "Session path")
}

// feedbackDelta builds the delta for the --helpful/--harmful choice.
func feedbackDelta(id string, helpful, harmful bool, reason, context, session string) (types.Delta, error) {
	switch {
	case helpful && harmful:
		return nil, fmt.Errorf("cannot use both --helpful and --harmful")
	case helpful:
		return types.HelpfulDelta{BulletID: id, Reason: reason, Context: context, SourceSession: session}, nil
	case harmful:
		return types.HarmfulDelta{BulletID: id, Reason: reason, Context: context, SourceSession: session}, nil
	default:
		return nil, fmt.Errorf("must provide --helpful or --harmful")
	}
}

func runMark(cmd *cobra.Command, args []string) error {
	d, err := feedbackDelta(args[0], markHelpful, markHarmful, markReason, markContext, markSession)
	if err != nil {
		return err
	}
	t, _, err := app.locate(args[0])
	if err != nil {
		return err
	}
	res, err := app.curate(cmd.Context(), t, []types.Delta{d})
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	if ok, err := emit(cmd.OutOrStdout(), res); ok {
		return err
	}
	printResult(cmd.OutOrStdout(), t.Store.Path(), res)
	return nil
}
