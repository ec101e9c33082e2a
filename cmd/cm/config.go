package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/config"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/formatter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the resolved configuration and where every value came from.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (CASS_MEMORY_*)
  3. Project config (<repo>/.cass/config.yaml, or --config / CASS_MEMORY_CONFIG)
  4. Home config (~/.cass-memory/config.yaml)
  5. Defaults

Environment variables map to keys by the first underscore after the prefix:
  CASS_MEMORY_OUTPUT                          output
  CASS_MEMORY_LOG_LEVEL                       log.level
  CASS_MEMORY_SCORING_DECAY_HALF_LIFE_DAYS    scoring.decay_half_life_days
  CASS_MEMORY_CURATION_NEW_BULLET_STATE       curation.new_bullet_state

Examples:
  cm config
  cm config -o yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// configReport is the machine-readable form of the resolved configuration.
type configReport struct {
	Config  *config.Config           `json:"config" yaml:"config"`
	Sources map[string]config.Source `json:"sources" yaml:"sources"`
	Files   []string                 `json:"files" yaml:"files"`
	Paths   map[string]string        `json:"paths" yaml:"paths"`
}

// flattenConfig returns the dotted keys of cfg with their rendered values.
func flattenConfig(cfg *config.Config) (map[string]string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	flat := make(map[string]string)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			flat[key] = fmt.Sprint(v)
		}
	}
	walk("", tree)
	return flat, nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	report := configReport{
		Config:  app.cfg.Config,
		Sources: app.cfg.Sources,
		Files:   app.cfg.Files,
		Paths: map[string]string{
			"global":    app.globalPath(),
			"workspace": app.workspacePath(),
		},
	}
	if ok, err := emit(w, report); ok {
		return err
	}

	flat, err := flattenConfig(app.cfg.Config)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "Config files:")
	if len(report.Files) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, f := range report.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Playbooks:\n  global:    %s\n  workspace: %s\n\n", report.Paths["global"], report.Paths["workspace"])

	tbl := formatter.NewTable(w, "KEY", "VALUE", "SOURCE")
	for _, k := range keys {
		src := report.Sources[k]
		if src == "" {
			src = config.SourceDefault
		}
		tbl.AddRow(k, flat[k], strings.ToLower(string(src)))
	}
	return tbl.Render()
}
