package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/refdelta/pkg/stats"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// topTypeRows bounds the per-agent type listing in text output.
const topTypeRows = 10

// Render writes r to w in the given format.
func Render(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return renderText(w, r)
	default:
		return RenderValue(w, r, format)
	}
}

// RenderValue encodes v as json or yaml.
func RenderValue(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func newTable(title string) table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func renderText(w io.Writer, r *Report) error {
	var sections []string

	if len(r.Smells) > 0 {
		tbl := newTable("Smells by dataset and agent")
		tbl.AppendHeader(table.Row{"Dataset", "Agent", "N", "Before mean", "After mean", "Delta mean", "Delta median", "Delta std", "Delta min", "Delta max"})

		for _, s := range r.Smells {
			tbl.AppendRow(table.Row{
				s.Dataset, s.Agent, humanize.Comma(int64(s.Delta.Count)),
				num(s.Before.Mean), num(s.After.Mean), direction(s.Delta.Mean),
				num(s.Delta.Median), num(s.Delta.Std), num(s.Delta.Min), num(s.Delta.Max),
			})
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.Changes) > 0 {
		tbl := newTable("Smell change per agent (%)")
		tbl.AppendHeader(table.Row{"Agent", "Commits", "Decreased", "Unchanged", "Increased"})

		for _, c := range r.Changes {
			tbl.AppendRow(table.Row{
				c.Agent, humanize.Comma(int64(c.Commits)),
				color.GreenString("%s", num(c.Decreased)), num(c.Unchanged), color.RedString("%s", num(c.Increased)),
			})
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.Comparisons) > 0 {
		tbl := newTable("Agent vs Human smell deltas")
		tbl.AppendHeader(table.Row{"Agent", "U", "p", "Cliff's delta", "Effect", "Median (H/A)", "Mean (H/A)", "n (H/A)"})

		for _, c := range r.Comparisons {
			tbl.AppendRow(table.Row{
				c.Agent,
				strconv.FormatFloat(c.U, 'f', 1, 64),
				pValue(c.P),
				strconv.FormatFloat(c.CliffsDelta, 'f', 3, 64),
				effect(c.Effect),
				fmt.Sprintf("%s / %s", num(Number(c.HumanMedian)), num(Number(c.AgentMedian))),
				fmt.Sprintf("%s / %s", num(Number(c.HumanMean)), num(Number(c.AgentMean))),
				fmt.Sprintf("%s / %s", humanize.Comma(int64(c.NHuman)), humanize.Comma(int64(c.NAgent))),
			})
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.AgentRates) > 0 {
		tbl := newTable("Commit and refactoring rates per agent")
		tbl.AppendHeader(table.Row{"Agent", "Commits", "Refactoring commits", "Refactorings", "Rate %", "Per ref. commit"})

		for _, a := range r.AgentRates {
			tbl.AppendRow(table.Row{
				a.Agent, humanize.Comma(int64(a.TotalCommits)), humanize.Comma(int64(a.RefactoringCommits)),
				humanize.Comma(int64(a.TotalRefactorings)), num(Number(a.RatePct)), num(Number(a.MeanPerRefactoringCommit)),
			})
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.Distributions) > 0 {
		tbl := newTable("Refactorings per refactoring commit")
		tbl.AppendHeader(table.Row{"Agent", "N", "Mean", "Median", "Std", "Min", "Max"})

		for _, d := range r.Distributions {
			tbl.AppendRow(distRow(d.Agent, d.Dist))
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.ProjectStats) > 0 {
		tbl := newTable("Per-project refactoring rate % by agent")
		tbl.AppendHeader(table.Row{"Agent", "Projects", "Mean", "Median", "Std", "Min", "Max"})

		for _, s := range r.ProjectStats {
			tbl.AppendRow(distRow(s.Agent, s.RatePct))
		}

		sections = append(sections, tbl.Render())
	}

	if len(r.TypesByGroup) > 0 {
		sections = append(sections, shareSection("Refactoring types, Human vs Agentic", r.TypesByGroup))
	}

	if len(r.TypesByAgent) > 0 {
		sections = append(sections, shareSection("Refactoring types by agent", r.TypesByAgent))
	}

	for _, warning := range r.Warnings {
		sections = append(sections, color.YellowString("warning: %s", warning))
	}

	if len(sections) == 0 {
		sections = append(sections, "No data to summarize")
	}

	_, err := fmt.Fprintln(w, strings.Join(sections, "\n\n"))

	return err
}

// shareSection lists the most frequent types of each key.
func shareSection(title string, rows []TypeShare) string {
	tbl := newTable(title)
	tbl.AppendHeader(table.Row{"Key", "Type", "Count", "Share %"})

	shown := map[string]int{}

	for _, s := range rows {
		if shown[s.Key] >= topTypeRows {
			continue
		}

		shown[s.Key]++

		tbl.AppendRow(table.Row{s.Key, s.Type, humanize.Comma(int64(s.Count)), num(round(s.SharePct, 2))})
	}

	return tbl.Render()
}

func distRow(label string, d Dist) table.Row {
	return table.Row{label, humanize.Comma(int64(d.Count)), num(d.Mean), num(d.Median), num(d.Std), num(d.Min), num(d.Max)}
}

func num(n Number) string {
	if !n.Valid() {
		return "-"
	}

	return humanize.CommafWithDigits(float64(n), 3)
}

func pValue(p float64) string {
	s := strconv.FormatFloat(p, 'g', 4, 64)
	if p < 0.05 {
		return color.New(color.Bold).Sprint(s)
	}

	return s
}

// direction colors a mean delta: fewer smells green, more smells red.
func direction(n Number) string {
	switch {
	case !n.Valid():
		return num(n)
	case n < 0:
		return color.GreenString("%s", num(n))
	case n > 0:
		return color.RedString("%s", num(n))
	default:
		return num(n)
	}
}

func effect(label string) string {
	switch label {
	case stats.EffectLarge:
		return color.RedString("%s", label)
	case stats.EffectMedium:
		return color.YellowString("%s", label)
	default:
		return label
	}
}
