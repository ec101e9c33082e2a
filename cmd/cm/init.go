package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty playbook",
	Long: `Create an empty playbook if none exists yet.

Without flags the global playbook is created. With --workspace the playbook
is created under the repository root found from the working directory.

Examples:
  cm init
  cm init --workspace`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	t := app.writeTarget()
	w := cmd.OutOrStdout()
	if fileExists(t.Store.Path()) {
		fmt.Fprintf(w, "%s playbook already exists: %s\n", t.Scope, t.Store.Path())
		return nil
	}
	if GetDryRun() {
		fmt.Fprintf(w, "[dry-run] Would create %s playbook: %s\n", t.Scope, t.Store.Path())
		return nil
	}

	created := false
	err := t.Store.Update(cmd.Context(), func(pb *types.Playbook) error {
		if len(pb.Bullets) > 0 {
			return storage.ErrDiscard
		}
		created = true
		return nil
	})
	if err != nil {
		return retryHint(fmt.Errorf("init %s playbook: %w", t.Scope, err))
	}
	if created {
		fmt.Fprintf(w, "Created %s playbook: %s\n", t.Scope, t.Store.Path())
	}
	return nil
}
