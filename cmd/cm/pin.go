package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var pinReason string

var pinCmd = &cobra.Command{
	Use:   "pin <bullet-id>",
	Short: "Protect a bullet from demotion, inversion and deprecation",
	Long: `Pin a bullet. Pinned bullets keep collecting feedback but are never
demoted, deprecated or inverted automatically, and win merges.

Examples:
  cm pin b-1a2b3c4d5e6f --reason "team policy"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], true)
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <bullet-id>",
	Short: "Remove a pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPinned(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	pinCmd.Flags().StringVar(&pinReason, "reason", "", "Why the bullet is pinned")
}

func setPinned(cmd *cobra.Command, id string, pinned bool) error {
	t, _, err := app.locate(id)
	if err != nil {
		return err
	}
	err = t.Store.Update(cmd.Context(), func(pb *types.Playbook) error {
		b := playbook.FindBullet(pb, id)
		if b == nil {
			return fmt.Errorf("%w: %s", types.ErrBulletNotFound, id)
		}
		if !pinned {
			playbook.Unpin(b, app.now())
			return nil
		}
		return playbook.Pin(b, pinReason, app.now())
	})
	if err != nil {
		return retryHint(err)
	}
	verb := "pin"
	if !pinned {
		verb = "unpin"
	}
	if GetDryRun() {
		fmt.Fprintf(cmd.OutOrStdout(), "[dry-run] Would %s %s\n", verb, id)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sned %s\n", strings.ToUpper(verb[:1])+verb[1:], id)
	return nil
}
