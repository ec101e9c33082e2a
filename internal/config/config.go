// Package config provides configuration management for cm.
// Configuration is loaded from (highest to lowest priority):
//  1. Command-line flags
//  2. Environment variables (CASS_MEMORY_*)
//  3. Project config (.cass/config.yaml in the workspace root)
//  4. Home config (~/.cass-memory/config.yaml)
//  5. Defaults
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/scoring"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
)

const (
	// EnvPrefix starts every environment override.
	EnvPrefix = "CASS_MEMORY_"

	// EnvConfigPath replaces the project config path.
	EnvConfigPath = EnvPrefix + "CONFIG"

	configFileName    = "config.yaml"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config holds all cm configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `koanf:"output" yaml:"output" json:"output"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose" yaml:"verbose" json:"verbose"`

	Log      LogConfig      `koanf:"log" yaml:"log" json:"log"`
	Paths    PathsConfig    `koanf:"paths" yaml:"paths" json:"paths"`
	Scoring  ScoringConfig  `koanf:"scoring" yaml:"scoring" json:"scoring"`
	Curation CurationConfig `koanf:"curation" yaml:"curation" json:"curation"`
	Lock     LockConfig     `koanf:"lock" yaml:"lock" json:"lock"`
	Storage  StorageConfig  `koanf:"storage" yaml:"storage" json:"storage"`

	// Workers bounds concurrent file decoding in batch commands.
	Workers int `koanf:"workers" yaml:"workers" json:"workers"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level" yaml:"level" json:"level"`

	// Format is console or json.
	Format string `koanf:"format" yaml:"format" json:"format"`
}

// PathsConfig locates the playbook documents.
type PathsConfig struct {
	// GlobalDir holds the per-user playbook. A leading ~ expands to $HOME.
	GlobalDir string `koanf:"global_dir" yaml:"global_dir" json:"global_dir"`

	// WorkspaceDir is the playbook directory inside a repository.
	WorkspaceDir string `koanf:"workspace_dir" yaml:"workspace_dir" json:"workspace_dir"`

	// PlaybookFile is the document name in either directory.
	PlaybookFile string `koanf:"playbook_file" yaml:"playbook_file" json:"playbook_file"`
}

// ScoringConfig mirrors scoring.Config with configuration keys.
type ScoringConfig struct {
	HarmfulMultiplier        float64 `koanf:"harmful_multiplier" yaml:"harmful_multiplier" json:"harmful_multiplier"`
	DecayHalfLifeDays        float64 `koanf:"decay_half_life_days" yaml:"decay_half_life_days" json:"decay_half_life_days"`
	MinFeedbackForActive     float64 `koanf:"min_feedback_for_active" yaml:"min_feedback_for_active" json:"min_feedback_for_active"`
	MinHelpfulForProven      float64 `koanf:"min_helpful_for_proven" yaml:"min_helpful_for_proven" json:"min_helpful_for_proven"`
	MaxHarmfulRatioForProven float64 `koanf:"max_harmful_ratio_for_proven" yaml:"max_harmful_ratio_for_proven" json:"max_harmful_ratio_for_proven"`
	DeprecateHarmfulRatio    float64 `koanf:"deprecate_harmful_ratio" yaml:"deprecate_harmful_ratio" json:"deprecate_harmful_ratio"`
	DeprecateMinFeedback     float64 `koanf:"deprecate_min_feedback" yaml:"deprecate_min_feedback" json:"deprecate_min_feedback"`
	PruneHarmfulThreshold    float64 `koanf:"prune_harmful_threshold" yaml:"prune_harmful_threshold" json:"prune_harmful_threshold"`
}

// CurationConfig holds delta-application policy.
type CurationConfig struct {
	DedupSimilarityThreshold float64 `koanf:"dedup_similarity_threshold" yaml:"dedup_similarity_threshold" json:"dedup_similarity_threshold"`

	// NewBulletState is draft or active.
	NewBulletState string `koanf:"new_bullet_state" yaml:"new_bullet_state" json:"new_bullet_state"`
}

// LockConfig bounds lock waits.
type LockConfig struct {
	Timeout       time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout"`
	RetryInterval time.Duration `koanf:"retry_interval" yaml:"retry_interval" json:"retry_interval"`
}

// StorageConfig selects the load failure policy.
type StorageConfig struct {
	// FailOpenOnCorrupt loads an unparseable playbook as empty instead of failing.
	FailOpenOnCorrupt bool `koanf:"fail_open_on_corrupt" yaml:"fail_open_on_corrupt" json:"fail_open_on_corrupt"`

	// BackupCorrupt copies an unparseable playbook aside before it is replaced.
	BackupCorrupt bool `koanf:"backup_corrupt" yaml:"backup_corrupt" json:"backup_corrupt"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput    = "table"
	defaultLogLevel  = "warn"
	defaultLogFormat = "console"
	defaultWorkers   = 4
)

// Default returns the default configuration.
func Default() *Config {
	sc := scoring.DefaultConfig()
	return &Config{
		Output: defaultOutput,
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Paths: PathsConfig{
			GlobalDir:    filepath.Join("~", storage.DefaultGlobalDir),
			WorkspaceDir: storage.DefaultWorkspaceDir,
			PlaybookFile: storage.DefaultPlaybookFile,
		},
		Scoring: ScoringConfig{
			HarmfulMultiplier:        sc.HarmfulMultiplier,
			DecayHalfLifeDays:        sc.DecayHalfLifeDays,
			MinFeedbackForActive:     sc.MinFeedbackForActive,
			MinHelpfulForProven:      sc.MinHelpfulForProven,
			MaxHarmfulRatioForProven: sc.MaxHarmfulRatioForProven,
			DeprecateHarmfulRatio:    sc.DeprecateHarmfulRatio,
			DeprecateMinFeedback:     sc.DeprecateMinFeedback,
			PruneHarmfulThreshold:    sc.PruneHarmfulThreshold,
		},
		Curation: CurationConfig{
			DedupSimilarityThreshold: 0.85,
			NewBulletState:           "draft",
		},
		Lock: LockConfig{
			Timeout:       storage.DefaultLockTimeout,
			RetryInterval: storage.DefaultLockRetryInterval,
		},
		Storage: StorageConfig{
			FailOpenOnCorrupt: true,
			BackupCorrupt:     true,
		},
		Workers: defaultWorkers,
	}
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "home"
	SourceProject Source = "project"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// Options tune Load.
type Options struct {
	// HomeDir replaces os.UserHomeDir.
	HomeDir string

	// WorkspaceRoot is where the project config is looked up. Defaults to
	// FindWorkspaceRoot from the current directory.
	WorkspaceRoot string

	// ConfigPath replaces the project config path (--config).
	ConfigPath string

	// Flags are dotted-key overrides from the command line.
	Flags map[string]any
}

// Loaded is a resolved configuration plus the origin of every key.
type Loaded struct {
	*Config

	Sources map[string]Source

	// Files lists the config files that were read.
	Files []string
}

// Load resolves configuration through the precedence chain.
func Load(opts Options) (*Loaded, error) {
	if opts.HomeDir == "" {
		opts.HomeDir, _ = os.UserHomeDir()
	}
	if opts.WorkspaceRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		opts.WorkspaceRoot = FindWorkspaceRoot(cwd, Default().Paths.WorkspaceDir)
	}

	k := koanf.New(".")
	out := &Loaded{Sources: make(map[string]Source)}

	layer := func(src Source, p koanf.Provider, parser koanf.Parser) error {
		lk := koanf.New(".")
		if err := lk.Load(p, parser); err != nil {
			return err
		}
		for _, key := range lk.Keys() {
			out.Sources[key] = src
		}
		return k.Merge(lk)
	}

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := layer(SourceDefault, rawbytes.Provider(defaults), koanfyaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	files := []struct {
		src  Source
		path string
	}{
		{SourceHome, homeConfigPath(opts.HomeDir)},
		{SourceProject, projectConfigPath(opts)},
	}
	for _, f := range files {
		content, err := readConfigFile(f.path)
		if err != nil {
			return nil, err
		}
		if content == nil {
			continue
		}
		if err := layer(f.src, rawbytes.Provider(content), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", f.path, err)
		}
		out.Files = append(out.Files, f.path)
	}

	if err := layer(SourceEnv, env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	for key, v := range opts.Flags {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("apply flag %s: %w", key, err)
		}
		out.Sources[key] = SourceFlag
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	out.Config = &cfg
	return out, nil
}

// envKey maps CASS_MEMORY_SECTION_FIELD_NAME to section.field_name.
// Only the first underscore after the prefix separates section from field.
func envKey(s string) string {
	if s == EnvConfigPath {
		return ""
	}
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// homeConfigPath returns the home config path.
func homeConfigPath(home string) string {
	if home == "" {
		return ""
	}
	return filepath.Join(home, storage.DefaultGlobalDir, configFileName)
}

// projectConfigPath returns the project config path.
func projectConfigPath(opts Options) string {
	if p := strings.TrimSpace(opts.ConfigPath); p != "" {
		return p
	}
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return override
	}
	if opts.WorkspaceRoot == "" {
		return ""
	}
	return filepath.Join(opts.WorkspaceRoot, storage.DefaultWorkspaceDir, configFileName)
}

// readConfigFile returns nil content for a missing file.
func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// Validate rejects values the engine cannot work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Output {
	case "table", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output must be table, json or yaml, got %q", c.Output))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	switch c.Curation.NewBulletState {
	case "draft", "active":
	default:
		errs = append(errs, fmt.Errorf("curation.new_bullet_state must be draft or active, got %q", c.Curation.NewBulletState))
	}
	if t := c.Curation.DedupSimilarityThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("curation.dedup_similarity_threshold must be in (0, 1], got %v", t))
	}

	positive := map[string]float64{
		"scoring.harmful_multiplier":      c.Scoring.HarmfulMultiplier,
		"scoring.decay_half_life_days":    c.Scoring.DecayHalfLifeDays,
		"scoring.min_feedback_for_active": c.Scoring.MinFeedbackForActive,
		"scoring.min_helpful_for_proven":  c.Scoring.MinHelpfulForProven,
		"scoring.prune_harmful_threshold": c.Scoring.PruneHarmfulThreshold,
	}
	keys := make([]string, 0, len(positive))
	for k := range positive {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if positive[k] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", k, positive[k]))
		}
	}
	ratios := []struct {
		key string
		v   float64
	}{
		{"scoring.max_harmful_ratio_for_proven", c.Scoring.MaxHarmfulRatioForProven},
		{"scoring.deprecate_harmful_ratio", c.Scoring.DeprecateHarmfulRatio},
	}
	for _, r := range ratios {
		if r.v <= 0 || r.v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", r.key, r.v))
		}
	}
	if c.Scoring.DeprecateMinFeedback < 0 {
		errs = append(errs, errors.New("scoring.deprecate_min_feedback must not be negative"))
	}
	if c.Lock.Timeout <= 0 || c.Lock.RetryInterval <= 0 {
		errs = append(errs, errors.New("lock.timeout and lock.retry_interval must be positive"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Paths.PlaybookFile == "" {
		errs = append(errs, errors.New("paths.playbook_file must be set"))
	}
	return errors.Join(errs...)
}

// ScoringConfig converts the scoring section for the engine.
func (c *Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		HarmfulMultiplier:        c.Scoring.HarmfulMultiplier,
		DecayHalfLifeDays:        c.Scoring.DecayHalfLifeDays,
		MinFeedbackForActive:     c.Scoring.MinFeedbackForActive,
		MinHelpfulForProven:      c.Scoring.MinHelpfulForProven,
		MaxHarmfulRatioForProven: c.Scoring.MaxHarmfulRatioForProven,
		DeprecateHarmfulRatio:    c.Scoring.DeprecateHarmfulRatio,
		DeprecateMinFeedback:     c.Scoring.DeprecateMinFeedback,
		PruneHarmfulThreshold:    c.Scoring.PruneHarmfulThreshold,
	}
}

// StoreOptions builds storage options from the lock and storage sections.
func (c *Config) StoreOptions() []storage.Option {
	return []storage.Option{
		storage.WithLockTimeout(c.Lock.Timeout),
		storage.WithRetryInterval(c.Lock.RetryInterval),
		storage.WithFailOpen(c.Storage.FailOpenOnCorrupt),
		storage.WithBackupCorrupt(c.Storage.BackupCorrupt),
	}
}

// GlobalPlaybookPath returns the per-user playbook path.
func (c *Config) GlobalPlaybookPath(home string) string {
	return filepath.Join(ExpandHome(c.Paths.GlobalDir, home), c.Paths.PlaybookFile)
}

// WorkspacePlaybookPath returns the playbook path inside root.
func (c *Config) WorkspacePlaybookPath(root string) string {
	return filepath.Join(root, c.Paths.WorkspaceDir, c.Paths.PlaybookFile)
}

// ExpandHome replaces a leading ~ with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// FindWorkspaceRoot walks up from start to the nearest directory holding
// workspaceDir or a .git entry. It returns start when neither is found.
func FindWorkspaceRoot(start, workspaceDir string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		for _, marker := range []string{workspaceDir, ".git"} {
			if marker == "" {
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
