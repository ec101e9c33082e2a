package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// MarkdownOptions tunes the playbook digest.
type MarkdownOptions struct {
	// Title heads the document. Defaults to "Playbook".
	Title string

	// Limit caps the number of rules and of anti-patterns. 0 means no cap.
	Limit int

	// ShowScores appends the effective score to each line.
	ShowScores bool
}

// templateData holds all data for the markdown template.
type templateData struct {
	Title        string
	Categories   []categoryGroup
	AntiPatterns []ScoredBullet
	ShowScores   bool
}

type categoryGroup struct {
	Name    string
	Bullets []ScoredBullet
}

// Markdown writes the live bullets of rows as an agent-readable digest:
// rules grouped by category, then anti-patterns. Rows are expected in
// rank order; deprecated and retired bullets are dropped.
func Markdown(w io.Writer, rows []ScoredBullet, opts MarkdownOptions) error {
	tmpl, err := template.New("playbook").Funcs(templateFuncs()).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, buildTemplateData(rows, opts))
}

func buildTemplateData(rows []ScoredBullet, opts MarkdownOptions) *templateData {
	data := &templateData{Title: opts.Title, ShowScores: opts.ShowScores}
	if data.Title == "" {
		data.Title = "Playbook"
	}

	groups := map[string]*categoryGroup{}
	rules := 0
	for _, r := range rows {
		b := r.Bullet
		if !b.IsLive() {
			continue
		}
		if b.Kind == types.KindAntiPattern || b.IsNegative {
			if opts.Limit <= 0 || len(data.AntiPatterns) < opts.Limit {
				data.AntiPatterns = append(data.AntiPatterns, r)
			}
			continue
		}
		if opts.Limit > 0 && rules >= opts.Limit {
			continue
		}
		rules++
		name := b.Category
		if name == "" {
			name = "general"
		}
		g, ok := groups[name]
		if !ok {
			g = &categoryGroup{Name: name}
			groups[name] = g
		}
		g.Bullets = append(g.Bullets, r)
	}

	for _, g := range groups {
		data.Categories = append(data.Categories, *g)
	}
	sort.Slice(data.Categories, func(i, j int) bool {
		return data.Categories[i].Name < data.Categories[j].Name
	})
	return data
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"title": func(s string) string {
			s = strings.ReplaceAll(s, "_", " ")
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"oneLine": func(s string) string { return Truncate(s, 0) },
		"score":   func(f float64) string { return fmt.Sprintf("%.2f", f) },
	}
}

const markdownTemplate = `# {{ .Title }}
{{- range .Categories }}

## {{ title .Name }}
{{ range .Bullets }}
- {{ oneLine .Bullet.Content }} ` + "`[{{ .Bullet.ID }}]`" + `{{ if $.ShowScores }} ({{ score .Score }}){{ end }}
{{- end }}
{{- end }}

{{- if .AntiPatterns }}

## Pitfalls
{{ range .AntiPatterns }}
- {{ oneLine .Bullet.Content }} ` + "`[{{ .Bullet.ID }}]`" + `{{ if $.ShowScores }} ({{ score .Score }}){{ end }}
{{- end }}
{{- end }}
`
