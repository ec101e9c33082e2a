package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
)

func TestVersionRunsWithoutConfig(t *testing.T) {
	newTestEnv(t)
	t.Setenv("CASS_MEMORY_OUTPUT", "not-a-format")
	out := mustRun(t, "version")
	if !strings.Contains(out, "cm version") {
		t.Errorf("version output = %q", out)
	}
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	newTestEnv(t)
	t.Setenv("CASS_MEMORY_OUTPUT", "not-a-format")
	if _, err := run(t, "", "list"); err == nil {
		t.Error("list should fail with an invalid output format in the environment")
	}
}

func TestGlobalAndWorkspaceAreExclusive(t *testing.T) {
	newTestEnv(t)
	if _, err := run(t, "", "list", "--global", "--workspace"); err == nil {
		t.Error("expected an error for --global with --workspace")
	}
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)
	out := mustRun(t, "init", "--dry-run")
	if !strings.Contains(out, "Would create") {
		t.Errorf("dry-run output = %q", out)
	}
	if fileExists(env.globalPlaybook()) {
		t.Fatal("dry-run created the playbook")
	}

	mustRun(t, "init")
	if !fileExists(env.globalPlaybook()) {
		t.Fatal("init did not create the playbook")
	}
	if out := mustRun(t, "init"); !strings.Contains(out, "already exists") {
		t.Errorf("second init output = %q", out)
	}

	mustRun(t, "init", "--workspace")
	if !fileExists(filepath.Join(env.work, ".cass", "playbook.yaml")) {
		t.Error("init --workspace did not create the workspace playbook")
	}
}

func TestAddListAndDuplicate(t *testing.T) {
	newTestEnv(t)
	id := addBullet(t, "Run go vet before every commit", "--category", "go", "--tag", "lint")
	if !strings.HasPrefix(id, "b-") {
		t.Errorf("id = %q, want b- prefix", id)
	}

	rows := listBullets(t)
	if len(rows) != 1 || rows[0].Bullet.ID != id {
		t.Fatalf("list = %+v", rows)
	}
	if rows[0].Bullet.Maturity != "candidate" || rows[0].Bullet.State != "draft" {
		t.Errorf("new bullet is %s/%s, want candidate/draft", rows[0].Bullet.Maturity, rows[0].Bullet.State)
	}

	if _, err := run(t, "", "add", "run go vet before every commit"); err == nil {
		t.Error("adding a duplicate should fail")
	}
	if rows := listBullets(t); len(rows) != 1 {
		t.Errorf("duplicate was stored: %d bullets", len(rows))
	}
}

func TestAddDryRunWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	out := mustRun(t, "add", "Prefer small pull requests", "--dry-run")
	if !strings.Contains(out, "[dry-run]") || !strings.Contains(out, "added") {
		t.Errorf("dry-run output = %q", out)
	}
	if fileExists(env.globalPlaybook()) {
		t.Error("dry-run wrote the playbook")
	}
}

func TestMarkPromotesAndInverts(t *testing.T) {
	newTestEnv(t)
	good := addBullet(t, "Use table-driven tests")
	// Real-clock events decay a little, so three marks sum to just under 3.
	for i := 0; i < 4; i++ {
		mustRun(t, "mark", good, "--helpful")
	}
	rows := listBullets(t)
	if rows[0].Bullet.Maturity != "established" || rows[0].Bullet.State != "active" {
		t.Errorf("after 4 helpful: %s/%s, want established/active", rows[0].Bullet.Maturity, rows[0].Bullet.State)
	}

	bad := addBullet(t, "Commit directly to main")
	for i := 0; i < 3; i++ {
		mustRun(t, "mark", bad, "--harmful", "--reason", "broke release")
	}

	var original, anti *listedBullet
	all := listBullets(t, "--all")
	for i := range all {
		switch {
		case all[i].Bullet.ID == bad:
			original = &all[i]
		case strings.HasPrefix(all[i].Bullet.Content, "AVOID: "):
			anti = &all[i]
		}
	}
	if original == nil || !original.Bullet.Deprecated {
		t.Fatalf("harmful bullet not deprecated: %+v", original)
	}
	if anti == nil {
		t.Fatal("no anti-pattern created")
	}
	if anti.Bullet.Content != "AVOID: Commit directly to main" || anti.Bullet.Kind != "anti_pattern" {
		t.Errorf("anti-pattern = %+v", anti.Bullet)
	}
	if len(anti.Bullet.DerivedFrom) != 1 || anti.Bullet.DerivedFrom[0] != bad {
		t.Errorf("anti-pattern derivedFrom = %v", anti.Bullet.DerivedFrom)
	}

	if _, err := run(t, "", "mark", good); err == nil {
		t.Error("mark without --helpful or --harmful should fail")
	}
	if _, err := run(t, "", "mark", "b-000000000000", "--helpful"); err == nil {
		t.Error("mark on an unknown id should fail")
	}
}

func TestMarkWhileLockedIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	id := addBullet(t, "Run go vet in CI")
	t.Setenv("CASS_MEMORY_LOCK_TIMEOUT", "100ms")

	held := storage.NewFileLock(env.globalPlaybook())
	if err := held.Acquire(context.Background(), time.Second, 10*time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, err := run(t, "", "mark", id, "--helpful")
	if err == nil {
		t.Fatal("mark succeeded while the playbook was locked")
	}
	if !errors.Is(err, storage.ErrLockTimeout) || !storage.IsRetryable(err) {
		t.Errorf("err = %v, want a retryable lock timeout", err)
	}
	if !strings.Contains(err.Error(), "retry") {
		t.Errorf("error gives no retry hint: %v", err)
	}

	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	mustRun(t, "mark", id, "--helpful")
}

func TestCurateFromFilesAndStdin(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	second := filepath.Join(dir, "b.yaml")
	if err := os.WriteFile(first, []byte(`[
  {"type": "add", "bullet": {"content": "Pin tool versions in CI", "category": "ci"}},
  {"type": "bogus"}
]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte(`deltas:
  - type: add
    bullet:
      content: Keep migrations reversible
      category: db
`), 0o644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "curate", first, second, "--dry-run")
	if !strings.Contains(out, "2 applied, 1 skipped") {
		t.Errorf("dry-run curate output = %q", out)
	}
	if fileExists(env.globalPlaybook()) {
		t.Fatal("dry-run curate wrote the playbook")
	}

	out = mustRun(t, "curate", first, second, "-o", "json")
	var res struct {
		Applied int      `json:"applied"`
		Skipped int      `json:"skipped"`
		Added   []string `json:"added"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode curate output: %v\n%s", err, out)
	}
	if res.Applied != 2 || res.Skipped != 1 || len(res.Added) != 2 {
		t.Errorf("curate result = %+v", res)
	}

	stdin := `[{"type": "helpful", "bulletId": "` + res.Added[0] + `", "sourceSession": "s1"}]`
	if _, err := run(t, stdin, "curate", "-"); err != nil {
		t.Fatalf("curate from stdin: %v", err)
	}
	for _, r := range listBullets(t) {
		if r.Bullet.ID == res.Added[0] && r.Bullet.Helpful != 1 {
			t.Errorf("helpful count = %d, want 1", r.Bullet.Helpful)
		}
	}
}

func TestCurateUnreadableFileAppliesNothing(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`[{"type":"add","bullet":{"content":"x y z"}}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "curate", good, filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if fileExists(env.globalPlaybook()) {
		t.Error("a partially readable batch was applied")
	}
}

func TestOutcomeFromFlags(t *testing.T) {
	newTestEnv(t)
	id := addBullet(t, "Write the failing test first")
	out := mustRun(t, "outcome", "--status", "success", "--bullets", id+",b-unknown00000", "--session", "s.jsonl")
	if !strings.Contains(out, "Unknown bullets: b-unknown00000") {
		t.Errorf("outcome output = %q", out)
	}
	rows := listBullets(t)
	if rows[0].Bullet.Helpful != 1 {
		t.Errorf("helpful count = %d, want 1", rows[0].Bullet.Helpful)
	}

	out = mustRun(t, "outcome", "--status", "mixed", "--bullets", id)
	if !strings.Contains(out, "ignored") {
		t.Errorf("mixed outcome output = %q", out)
	}
	if _, err := run(t, "", "outcome", "--status", "great", "--bullets", id); err == nil {
		t.Error("unknown status should fail")
	}
}

func TestPinForgetAndShow(t *testing.T) {
	newTestEnv(t)
	id := addBullet(t, "Never force-push shared branches")

	mustRun(t, "pin", id, "--reason", "team policy")
	if _, err := run(t, "", "forget", id); err == nil {
		t.Error("forgetting a pinned bullet should fail")
	}
	mustRun(t, "unpin", id)
	mustRun(t, "forget", id, "--reason", "superseded")

	out := mustRun(t, "show", id)
	for _, want := range []string{"content:", "superseded", "score:"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	out = mustRun(t, "why", id, "-o", "json")
	var report struct {
		Bullet struct {
			Deprecated bool `json:"deprecated"`
		} `json:"bullet"`
		Score struct {
			Effective float64 `json:"effective"`
		} `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if !report.Bullet.Deprecated || report.Score.Effective != 0 {
		t.Errorf("show report = %+v", report)
	}
	if rows := listBullets(t); len(rows) != 0 {
		t.Errorf("deprecated bullet listed without --all: %+v", rows)
	}
}

func TestSimilarStatsPruneExportConfig(t *testing.T) {
	newTestEnv(t)
	addBullet(t, "Run the race detector in CI")
	addBullet(t, "Document every exported function")

	out := mustRun(t, "similar", "race detector in CI pipelines")
	if !strings.Contains(out, "Run the race detector in CI") || strings.Contains(out, "Document every") {
		t.Errorf("similar output:\n%s", out)
	}

	out = mustRun(t, "stats")
	if !strings.Contains(out, "2 candidate") {
		t.Errorf("stats output:\n%s", out)
	}

	out = mustRun(t, "prune")
	if !strings.Contains(out, "2 evaluated, 0 demoted, 0 deprecated") {
		t.Errorf("prune output:\n%s", out)
	}

	out = mustRun(t, "export", "--title", "Rules")
	if !strings.HasPrefix(out, "# Rules") || !strings.Contains(out, "race detector") {
		t.Errorf("export output:\n%s", out)
	}

	t.Setenv("CASS_MEMORY_SCORING_DECAY_HALF_LIFE_DAYS", "30")
	out = mustRun(t, "config")
	if !strings.Contains(out, "scoring.decay_half_life_days") || !strings.Contains(out, "environment") {
		t.Errorf("config output:\n%s", out)
	}
}
