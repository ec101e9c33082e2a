package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	forgetReason     string
	forgetReplacedBy string
)

var forgetCmd = &cobra.Command{
	Use:   "forget <bullet-id>",
	Short: "Deprecate a bullet by hand",
	Long: `Deprecate a bullet. The bullet stays in the playbook with its history but
no longer scores or takes part in deduplication. Pinned bullets must be
unpinned first.

Examples:
  cm forget b-1a2b3c4d5e6f --reason "obsolete after the v2 migration"
  cm forget b-1a2b3c4d5e6f --replaced-by b-0f1e2d3c4b5a`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
	forgetCmd.Flags().StringVar(&forgetReason, "reason", "", "Why the bullet is deprecated")
	forgetCmd.Flags().StringVar(&forgetReplacedBy, "replaced-by", "", "Id of the bullet that supersedes it")
}

func runForget(cmd *cobra.Command, args []string) error {
	t, _, err := app.locate(args[0])
	if err != nil {
		return err
	}
	res, err := app.curate(cmd.Context(), t, []types.Delta{
		types.DeprecateDelta{BulletID: args[0], Reason: forgetReason, ReplacedBy: forgetReplacedBy},
	})
	if err != nil {
		return fmt.Errorf("deprecate %s: %w", args[0], err)
	}
	if ok, err := emit(cmd.OutOrStdout(), res); ok {
		return err
	}
	printResult(cmd.OutOrStdout(), t.Store.Path(), res)
	if res.Skipped > 0 {
		return errors.New(res.Skips[0].Reason)
	}
	return nil
}
