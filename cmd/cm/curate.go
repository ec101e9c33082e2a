package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var curateCmd = &cobra.Command{
	Use:   "curate <deltas-file>...",
	Short: "Apply a batch of deltas to a playbook",
	Long: `Apply proposed playbook changes ("deltas") from JSON or YAML files.

Each file holds a list of deltas, or a mapping with a "deltas" list. Use "-"
to read from stdin. Files are decoded concurrently and applied in the order
given, under a single lock of the target playbook. Deltas that fail
validation are reported as skipped and do not stop the batch.

Delta types:
  add        {"type":"add","bullet":{"content":"...","category":"..."}}
  update     {"type":"update","bulletId":"b-...","bullet":{...}}
  helpful    {"type":"helpful","bulletId":"b-...","reason":"..."}
  harmful    {"type":"harmful","bulletId":"b-...","reason":"..."}
  merge      {"type":"merge","bulletIds":["b-...","b-..."]}
  deprecate  {"type":"deprecate","bulletId":"b-...","replacedBy":"b-..."}

Examples:
  cm curate reflection.json
  cm curate --workspace session-*.yaml
  extract-deltas session.jsonl | cm curate - --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCurate,
}

func init() {
	rootCmd.AddCommand(curateCmd)
}

func runCurate(cmd *cobra.Command, args []string) error {
	deltas, err := decodeFiles(cmd.Context(), args, cmd.InOrStdin(), types.DecodeDeltas)
	if err != nil {
		return fmt.Errorf("read deltas: %w", err)
	}
	t := app.writeTarget()
	if len(deltas) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No deltas to apply to %s\n", t.Store.Path())
		return nil
	}

	res, err := app.curate(cmd.Context(), t, deltas)
	if err != nil {
		return fmt.Errorf("curate %s: %w", t.Store.Path(), err)
	}
	if ok, err := emit(cmd.OutOrStdout(), res); ok {
		return err
	}
	printResult(cmd.OutOrStdout(), t.Store.Path(), res)
	return nil
}
