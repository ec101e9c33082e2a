package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil) //nolint:errcheck // test helper
		} else {
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // test helper
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testEnv isolates HOME and the working directory for one test.
type testEnv struct {
	home string
	work string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{home: t.TempDir(), work: t.TempDir()}
	t.Setenv("HOME", env.home)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "CASS_MEMORY_") {
			t.Setenv(strings.SplitN(kv, "=", 2)[0], "")
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0]) //nolint:errcheck // restored by t.Setenv
		}
	}
	if err := os.Mkdir(filepath.Join(env.work, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(env.work); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", env.work)
	t.Cleanup(func() { _ = os.Chdir(wd) }) //nolint:errcheck // test helper
	return env
}

func (e *testEnv) globalPlaybook() string {
	return filepath.Join(e.home, ".cass-memory", "playbook.yaml")
}

// run executes cm with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	app = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("cm %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// addBullet adds content and returns the new id.
func addBullet(t *testing.T, content string, extra ...string) string {
	t.Helper()
	out := mustRun(t, append([]string{"add", content, "-o", "json"}, extra...)...)
	var res struct {
		Added []string `json:"added"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode add output: %v\n%s", err, out)
	}
	if len(res.Added) != 1 {
		t.Fatalf("add output has %d ids: %s", len(res.Added), out)
	}
	return res.Added[0]
}

type listedBullet struct {
	Score  float64 `json:"score"`
	Bullet struct {
		ID          string   `json:"id"`
		Content     string   `json:"content"`
		Kind        string   `json:"kind"`
		Maturity    string   `json:"maturity"`
		State       string   `json:"state"`
		Deprecated  bool     `json:"deprecated"`
		Pinned      bool     `json:"pinned"`
		DerivedFrom []string `json:"derivedFrom"`
		Helpful     int      `json:"helpfulCount"`
		Harmful     int      `json:"harmfulCount"`
	} `json:"bullet"`
}

func listBullets(t *testing.T, extra ...string) []listedBullet {
	t.Helper()
	out := mustRun(t, append([]string{"list", "-o", "json"}, extra...)...)
	var rows []listedBullet
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	return rows
}
