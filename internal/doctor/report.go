package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/charmbracelet/lipgloss"
	"github.com/jakoblorz/go-graft/internal/models"
)

// Exit codes returned by ExitCode.
const (
	ExitClean    = 0
	ExitErrors   = 1
	ExitWarnings = 2
)

// Summary counts findings by severity.
type Summary struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	Fixable  int `json:"fixable"`
}

// Summarize counts findings.
func Summarize(findings []models.Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			s.Errors++
		case models.SeverityWarning:
			s.Warnings++
		case models.SeverityInfo:
			s.Infos++
		}
		if f.Fixable {
			s.Fixable++
		}
	}
	return s
}

// ExitCode is 1 when any error was found, 2 when only warnings were found
// and 0 otherwise. Info findings never affect it.
func ExitCode(findings []models.Finding) int {
	s := Summarize(findings)
	switch {
	case s.Errors > 0:
		return ExitErrors
	case s.Warnings > 0:
		return ExitWarnings
	default:
		return ExitClean
	}
}

type group struct {
	Check    string
	Findings []models.Finding
}

// groupByCheck keeps the first-seen order of checks.
func groupByCheck(findings []models.Finding) []group {
	var groups []group
	index := map[string]int{}
	for _, f := range findings {
		i, ok := index[f.Check]
		if !ok {
			i = len(groups)
			index[f.Check] = i
			groups = append(groups, group{Check: f.Check})
		}
		groups[i].Findings = append(groups[i].Findings, f)
	}
	return groups
}

const textTemplate = `{{- if not .Groups }}{{ ok "✓ No problems found" }}
{{ else }}{{ range .Groups }}{{ header (title .Check) }}
{{ range .Findings }}  {{ badge .Severity }} {{ with .Module }}[{{ . }}] {{ end }}{{ .Message }}{{ with .File }} {{ subtle (printf "(%s)" .) }}{{ end }}{{ if .Fixable }} {{ subtle "fixable" }}{{ end }}
{{ end }}
{{ end }}{{ with .Summary }}{{ .Errors }} {{ ternary "error" "errors" (eq .Errors 1) }}, {{ .Warnings }} {{ ternary "warning" "warnings" (eq .Warnings 1) }}, {{ .Infos }} info{{ if .Fixable }} ({{ .Fixable }} fixable){{ end }}
{{ end }}{{ end }}`

// RenderText writes a human-readable report grouped by check. Styling adapts
// to w: plain text for files and pipes, colors on a terminal.
func RenderText(w io.Writer, findings []models.Finding) error {
	r := lipgloss.NewRenderer(w)

	severityStyles := map[models.Severity]lipgloss.Style{
		models.SeverityError:   r.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		models.SeverityWarning: r.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true),
		models.SeverityInfo:    r.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
	}
	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	subtleStyle := r.NewStyle().Foreground(lipgloss.Color("#666666"))
	okStyle := r.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)

	funcs := sprig.TxtFuncMap()
	funcs["badge"] = func(s models.Severity) string {
		return severityStyles[s].Render(s.String()) + strings.Repeat(" ", len("warning")-len(s))
	}
	funcs["header"] = func(s string) string { return headerStyle.Render(s) }
	funcs["subtle"] = func(s string) string { return subtleStyle.Render(s) }
	funcs["ok"] = func(s string) string { return okStyle.Render(s) }

	tmpl, err := template.New("report").Funcs(funcs).Parse(textTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse report template: %w", err)
	}

	data := struct {
		Groups  []group
		Summary Summary
	}{
		Groups:  groupByCheck(findings),
		Summary: Summarize(findings),
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// Report is the JSON document written by RenderJSON.
type Report struct {
	Findings []models.Finding `json:"findings"`
	Summary  Summary          `json:"summary"`
	ExitCode int              `json:"exitCode"`
}

// RenderJSON writes findings, their summary and the exit code as indented JSON.
func RenderJSON(w io.Writer, findings []models.Finding) error {
	if findings == nil {
		findings = []models.Finding{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Report{
		Findings: findings,
		Summary:  Summarize(findings),
		ExitCode: ExitCode(findings),
	}); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
