package curator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/playbook"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/storage"
	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

func seedStore(t *testing.T, path string, ids ...string) *storage.Store {
	t.Helper()
	st := storage.New(path)
	pb := types.NewPlaybook("test", now)
	for _, id := range ids {
		bulletWith(t, pb, id, "rule "+id, types.MaturityCandidate, 0, 0)
	}
	if err := st.Save(pb); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
	return st
}

func TestDecodeOutcomes(t *testing.T) {
	list := `[{"sessionPath": "s1", "status": "success", "bulletIds": ["b-1"]}]`
	envelope := "outcomes:\n  - sessionPath: s2\n    status: failure\n    bulletIds: [b-2, b-3]\n"

	got, err := DecodeOutcomes([]byte(list))
	if err != nil || len(got) != 1 || got[0].Status != OutcomeSuccess {
		t.Errorf("list: %+v, %v", got, err)
	}
	got, err = DecodeOutcomes([]byte(envelope))
	if err != nil || len(got) != 1 || len(got[0].BulletIDs) != 2 {
		t.Errorf("envelope: %+v, %v", got, err)
	}
	if _, err := DecodeOutcomes([]byte("{{{")); err == nil {
		t.Error("expected parse error")
	}
}

func TestRecordOutcomes(t *testing.T) {
	dir := t.TempDir()
	global := seedStore(t, filepath.Join(dir, "global", "playbook.yaml"), "b-g1")
	workspace := seedStore(t, filepath.Join(dir, "repo", ".cass", "playbook.yaml"), "b-w1")
	untouchedPath := filepath.Join(dir, "other", "playbook.yaml")
	untouched := storage.New(untouchedPath)

	outcomes := []Outcome{
		{SessionPath: "s1", Status: OutcomeSuccess, BulletIDs: []string{"b-g1", "b-w1"}},
		{SessionPath: "s2", Status: OutcomeFailure, BulletIDs: []string{"b-g1", "b-missing"}},
		{SessionPath: "s3", Status: OutcomeMixed, BulletIDs: []string{"b-w1"}},
	}
	report, err := RecordOutcomes(context.Background(),
		[]storage.Storage{global, workspace, untouched}, outcomes, testOpts()...)
	if err != nil {
		t.Fatalf("RecordOutcomes: %v", err)
	}

	if report.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", report.Ignored)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0] != "b-missing" {
		t.Errorf("Unmatched = %v", report.Unmatched)
	}
	if len(report.Stores) != 2 {
		t.Fatalf("Stores = %+v, want 2 entries", report.Stores)
	}

	gpb, err := global.Load()
	if err != nil {
		t.Fatal(err)
	}
	g := playbook.FindBullet(gpb, "b-g1")
	if g.HelpfulCount != 1 || g.HarmfulCount != 1 {
		t.Errorf("b-g1 counts = %d/%d, want 1/1", g.HelpfulCount, g.HarmfulCount)
	}

	wpb, err := workspace.Load()
	if err != nil {
		t.Fatal(err)
	}
	w := playbook.FindBullet(wpb, "b-w1")
	if w.HelpfulCount != 1 || w.HarmfulCount != 0 {
		t.Errorf("b-w1 counts = %d/%d, want 1/0", w.HelpfulCount, w.HarmfulCount)
	}

	if _, err := os.Stat(untouchedPath); !os.IsNotExist(err) {
		t.Errorf("store without matching bullets was written: %v", err)
	}
}

func TestRecordOutcomes_OnlyMixed(t *testing.T) {
	report, err := RecordOutcomes(context.Background(), nil,
		[]Outcome{{Status: OutcomeMixed, BulletIDs: []string{"b-1"}}}, testOpts()...)
	if err != nil {
		t.Fatal(err)
	}
	if report.Ignored != 1 || len(report.Stores) != 0 {
		t.Errorf("report = %+v", report)
	}
}
