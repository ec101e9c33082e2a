package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/curator"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
)

var (
	outcomeStatus  string
	outcomeBullets []string
	outcomeSession string
	outcomeReason  string
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome [outcomes-file...]",
	Short: "Record how sessions that used some bullets ended",
	Long: `Turn session outcomes into feedback for the bullets the session used.

  success  -> helpful feedback for every listed bullet
  failure  -> harmful feedback for every listed bullet
  mixed    -> ignored

Outcomes come from JSON or YAML files (a list, or a mapping with an
"outcomes" list), or from flags for a single session. Every playbook in
scope is updated at most once.

Examples:
  cm outcome --status success --bullets b-1a2b3c4d5e6f,b-0f1e2d3c4b5a --session s.jsonl
  cm outcome outcomes.yaml`,
	RunE: runOutcome,
}

func init() {
	rootCmd.AddCommand(outcomeCmd)
	outcomeCmd.Flags().StringVar(&outcomeStatus, "status", "", "Session status (success, failure, mixed)")
	outcomeCmd.Flags().StringSliceVar(&outcomeBullets, "bullets", nil, "Bullet ids used by the session")
	outcomeCmd.Flags().StringVar(&outcomeSession, "session", "", "Session path")
	outcomeCmd.Flags().StringVar(&outcomeReason, "reason", "", "Reason recorded on each feedback event")
}

// outcomeFromFlags builds a single outcome from the command flags.
func outcomeFromFlags(status string, bullets []string, session, reason string) (curator.Outcome, error) {
	s := curator.OutcomeStatus(strings.ToLower(strings.TrimSpace(status)))
	switch s {
	case curator.OutcomeSuccess, curator.OutcomeFailure, curator.OutcomeMixed:
	default:
		return curator.Outcome{}, fmt.Errorf("--status must be success, failure or mixed, got %q", status)
	}
	if len(bullets) == 0 {
		return curator.Outcome{}, fmt.Errorf("--bullets is required with --status")
	}
	return curator.Outcome{SessionPath: session, Status: s, BulletIDs: bullets, Reason: reason}, nil
}

func runOutcome(cmd *cobra.Command, args []string) error {
	var outcomes []curator.Outcome
	switch {
	case len(args) > 0 && outcomeStatus != "":
		return fmt.Errorf("use either outcome files or --status, not both")
	case len(args) > 0:
		decoded, err := decodeFiles(cmd.Context(), args, cmd.InOrStdin(), curator.DecodeOutcomes)
		if err != nil {
			return fmt.Errorf("read outcomes: %w", err)
		}
		outcomes = decoded
	default:
		o, err := outcomeFromFlags(outcomeStatus, outcomeBullets, outcomeSession, outcomeReason)
		if err != nil {
			return err
		}
		outcomes = []curator.Outcome{o}
	}

	var stores []storage.Storage
	for _, t := range app.readTargets() {
		stores = append(stores, t.Store)
	}
	report, err := app.curator().RecordOutcomes(cmd.Context(), stores, outcomes)
	if err != nil {
		return retryHint(err)
	}
	if ok, err := emit(cmd.OutOrStdout(), report); ok {
		return err
	}

	w := cmd.OutOrStdout()
	for _, so := range report.Stores {
		printResult(w, so.Path, so.Result)
	}
	if report.Ignored > 0 {
		fmt.Fprintf(w, "%d outcome(s) without a feedback signal ignored\n", report.Ignored)
	}
	if len(report.Unmatched) > 0 {
		fmt.Fprintf(w, "Unknown bullets: %s\n", strings.Join(report.Unmatched, ", "))
	}
	if len(report.Stores) == 0 && report.Ignored == 0 && len(report.Unmatched) == 0 {
		fmt.Fprintln(w, "No outcomes to record")
	}
	return nil
}
