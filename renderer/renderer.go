// Package renderer turns valuations and histories into markdown reports.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/holdings"
	"github.com/google/uuid"
)

//go:embed templates/*.md
var templates embed.FS

// ValuationOptions holds configuration for rendering a valuation report.
type ValuationOptions struct {
	HideClosed   bool // Do not render the closed positions section.
	HideExposure bool // Do not render the sector, asset type and currency tables.
}

// RenderValuation renders a valuation to a markdown string.
func RenderValuation(v *holdings.Valuation, opts ValuationOptions) string {
	partials := map[string]string{
		"valuation_title":     "valuation_title.md",
		"valuation_positions": "valuation_positions.md",
		"valuation_closed":    "valuation_closed.md",
		"valuation_exposure":  "valuation_exposure.md",
		"valuation_risk":      "valuation_risk.md",
	}
	// An empty file name results in an empty template.
	if opts.HideClosed {
		partials["valuation_closed"] = ""
	}
	if opts.HideExposure {
		partials["valuation_exposure"] = ""
	}
	return renderTemplate("valuation", "valuation.md", partials, v)
}

// PositionReport is the detail of one position: its lots and realized gains.
type PositionReport struct {
	Position     holdings.Position
	Holding      holdings.Holding
	Realizations []holdings.Realization
	// Value is optional, set when the position has been valued.
	Value *holdings.PositionValue
}

// NewPositionReport collects the report of symbol in p. v may be nil.
func NewPositionReport(p *holdings.Portfolio, symbol string, v *holdings.Valuation) (*PositionReport, error) {
	pos, ok := p.Position(symbol)
	if !ok {
		return nil, &holdings.PositionNotFoundError{Symbol: symbol}
	}
	r := &PositionReport{
		Position:     pos,
		Holding:      pos.Aggregate(),
		Realizations: p.Realizations(pos.Symbol),
	}
	if v != nil {
		if pv, ok := v.Position(pos.Symbol); ok {
			r.Value = &pv
		}
	}
	return r, nil
}

// RenderPosition renders a position report to a markdown string.
func RenderPosition(r *PositionReport) string {
	partials := map[string]string{
		"position_title":        "position_title.md",
		"position_lots":         "position_lots.md",
		"position_realizations": "position_realizations.md",
	}
	return renderTemplate("position", "position.md", partials, r)
}

// HistoryReport lists snapshots and, when there are enough, their performance.
type HistoryReport struct {
	Owner       string
	Snapshots   []holdings.Snapshot
	Performance *holdings.Performance
}

// RenderHistory renders a history report to a markdown string.
func RenderHistory(r *HistoryReport) string {
	partials := map[string]string{
		"history_snapshots":   "history_snapshots.md",
		"history_performance": "history_performance.md",
	}
	if r.Performance == nil {
		partials["history_performance"] = ""
	}
	return renderTemplate("history", "history.md", partials, r)
}

var funcs = template.FuncMap{
	"day":    func(t time.Time) string { return t.Format(time.DateOnly) },
	"stamp":  func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"short":  func(id uuid.UUID) string { return id.String()[:8] },
	"open":   func(pvs []holdings.PositionValue) []holdings.PositionValue { return filter(pvs, false) },
	"closed": func(pvs []holdings.PositionValue) []holdings.PositionValue { return filter(pvs, true) },
}

func filter(pvs []holdings.PositionValue, closed bool) []holdings.PositionValue {
	var res []holdings.PositionValue
	for _, pv := range pvs {
		if pv.Closed == closed {
			res = append(res, pv)
		}
	}
	return res
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, "templates/"+file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
