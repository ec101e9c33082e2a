package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBulletTable(t *testing.T) {
	b := &types.Bullet{
		ID: "b-1", Kind: types.KindRule, Maturity: types.MaturityProven, State: types.StateActive,
		Pinned: true, HelpfulCount: 12, HarmfulCount: 1,
		Content:   "Run the race detector in CI",
		UpdatedAt: testNow.Add(-72 * time.Hour),
	}
	var buf bytes.Buffer
	if err := BulletTable(&buf, []ScoredBullet{{Bullet: b, Score: 4.25}}, testNow); err != nil {
		t.Fatalf("BulletTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"b-1", "proven *", "4.25", "+12/-1", "3 days ago", "race detector"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRelTime(t *testing.T) {
	if got := RelTime(time.Time{}, testNow); got != "-" {
		t.Errorf("RelTime(zero) = %q, want -", got)
	}
	if got := RelTimePtr(nil, testNow); got != "-" {
		t.Errorf("RelTimePtr(nil) = %q, want -", got)
	}
	past := testNow.Add(-2 * time.Hour)
	if got := RelTimePtr(&past, testNow); got != "2 hours ago" {
		t.Errorf("RelTimePtr = %q, want 2 hours ago", got)
	}
}

func TestEncode(t *testing.T) {
	v := map[string]any{"id": "b-1", "content": "x < y && y > z"}

	var js bytes.Buffer
	if err := Encode(&js, "json", v); err != nil {
		t.Fatalf("Encode json: %v", err)
	}
	if !strings.Contains(js.String(), `"x < y && y > z"`) {
		t.Errorf("json escaped HTML: %s", js.String())
	}

	var ys bytes.Buffer
	if err := Encode(&ys, "YAML", v); err != nil {
		t.Fatalf("Encode yaml: %v", err)
	}
	if !strings.Contains(ys.String(), "id: b-1") {
		t.Errorf("yaml output = %s", ys.String())
	}

	if err := Encode(&ys, "table", v); err == nil {
		t.Error("Encode(table) should fail")
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml", "JSON"} {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("ValidFormat(xml) = true")
	}
}

func TestKeyValues(t *testing.T) {
	var buf bytes.Buffer
	if err := KeyValues(&buf, [][2]string{{"id", "b-1"}, {"maturity", "proven"}}); err != nil {
		t.Fatalf("KeyValues: %v", err)
	}
	want := "id:        b-1\nmaturity:  proven\n"
	if buf.String() != want {
		t.Errorf("KeyValues = %q, want %q", buf.String(), want)
	}
}
