package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var (
	addCategory  string
	addKind      string
	addNegative  bool
	addReason    string
	addReasoning string
	addTags      []string
	addSession   string
)

var addCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a rule to the playbook",
	Long: `Add a rule to the playbook as a new candidate bullet.

Content that closely matches a live bullet is rejected as a duplicate; the
existing bullet's id is reported instead.

Examples:
  cm add "Run go vet before committing" --category go
  cm add "Mocking the database in integration tests" --negative
  cm add "Use pnpm, not npm, in this repo" --kind project_convention --workspace`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addCategory, "category", "", "Category (default: general)")
	addCmd.Flags().StringVar(&addKind, "kind", string(types.KindRule), "Kind (rule, anti_pattern, project_convention, stack_pattern, workflow_rule)")
	addCmd.Flags().BoolVar(&addNegative, "negative", false, "The content describes something to avoid")
	addCmd.Flags().StringVar(&addReason, "reason", "", "Why the rule is being added")
	addCmd.Flags().StringVar(&addReasoning, "reasoning", "", "Longer rationale stored with the bullet")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag (repeatable)")
	addCmd.Flags().StringVar(&addSession, "session", "", "Source session path")
}

func parseKind(s string) (types.Kind, error) {
	switch k := types.Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case types.KindRule, types.KindAntiPattern, types.KindProjectConvention,
		types.KindStackPattern, types.KindWorkflowRule:
		return k, nil
	case "":
		return types.KindRule, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(addKind)
	if err != nil {
		return err
	}
	t := app.writeTarget()
	draft := types.BulletDraft{
		Content:    strings.Join(args, " "),
		Category:   addCategory,
		Kind:       kind,
		Scope:      t.Scope,
		IsNegative: addNegative,
		Reasoning:  addReasoning,
		Tags:       addTags,
	}
	if t.Scope == types.ScopeWorkspace {
		draft.Workspace = app.root
	}

	res, err := app.curate(cmd.Context(), t, []types.Delta{
		types.AddDelta{Bullet: draft, Reason: addReason, SourceSession: addSession},
	})
	if err != nil {
		return fmt.Errorf("add bullet: %w", err)
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
