package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

func scored(id, category, content string, kind types.Kind, score float64) ScoredBullet {
	return ScoredBullet{
		Bullet: &types.Bullet{
			ID: id, Category: category, Content: content, Kind: kind,
			State: types.StateActive, Maturity: types.MaturityEstablished,
		},
		Score: score,
	}
}

func TestMarkdown_GroupsAndPitfalls(t *testing.T) {
	dead := scored("b-dead", "testing", "old advice", types.KindRule, 0)
	dead.Bullet.Deprecated = true

	rows := []ScoredBullet{
		scored("b-1", "testing", "Use t.TempDir for scratch files", types.KindRule, 3),
		scored("b-2", "git", "Rebase before pushing", types.KindWorkflowRule, 2),
		scored("b-3", "testing", "AVOID: sleeping in tests", types.KindAntiPattern, 1),
		dead,
	}

	var buf bytes.Buffer
	if err := Markdown(&buf, rows, MarkdownOptions{Title: "Project rules", ShowScores: true}); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Project rules",
		"## Git",
		"## Testing",
		"- Use t.TempDir for scratch files `[b-1]` (3.00)",
		"## Pitfalls",
		"- AVOID: sleeping in tests `[b-3]`",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "old advice") {
		t.Errorf("deprecated bullet rendered:\n%s", out)
	}
	if strings.Index(out, "## Git") > strings.Index(out, "## Testing") {
		t.Errorf("categories not sorted:\n%s", out)
	}
}

func TestMarkdown_Limit(t *testing.T) {
	rows := []ScoredBullet{
		scored("b-1", "a", "first", types.KindRule, 3),
		scored("b-2", "a", "second", types.KindRule, 2),
		scored("b-3", "a", "third", types.KindRule, 1),
	}
	var buf bytes.Buffer
	if err := Markdown(&buf, rows, MarkdownOptions{Limit: 2}); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# Playbook") {
		t.Errorf("default title missing:\n%s", out)
	}
	if !strings.Contains(out, "second") || strings.Contains(out, "third") {
		t.Errorf("limit not applied:\n%s", out)
	}
	if strings.Contains(out, "Pitfalls") {
		t.Errorf("empty pitfalls section rendered:\n%s", out)
	}
}
