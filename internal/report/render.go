package report

import (
	"bytes"
	"fmt"
	"text/template"
)

const markdownTemplate = `# {{.Header}}

Generated: {{.GeneratedAt.Format "2006-01-02T15:04:05Z07:00"}} ({{.GenerationTimeMS}}ms{{if .FromCache}}, cached{{end}})

{{range .RenderedSections}}## {{.Title}}
{{.Body}}
{{end}}`

var tmpl = template.Must(template.New("report").Parse(markdownTemplate))

// renderedSection is one body section's heading plus its rendered
// text, already resolved to either real content or the literal
// "[Data Unavailable: <reason>]" placeholder (spec.md §7).
type renderedSection struct {
	Title string
	Body  string
}

// renderModel wraps a MarketReport with its sections pre-rendered in
// fixed order, since text/template has no clean way to dispatch on a
// tag string to the right struct field.
type renderModel struct {
	MarketReport
	RenderedSections []renderedSection
}

var sectionTitles = map[string]string{
	SectionPriceOverview:  "Price Overview",
	SectionOrderBook:      "Order Book",
	SectionLiquidity:      "Liquidity Analysis",
	SectionMicrostructure: "Market Microstructure",
	SectionAnomalies:      "Market Anomalies",
	SectionHealth:         "Microstructure Health",
	SectionDataHealth:     "Data Health",
}

// sectionBody renders tag's body from r's data, or reports false if
// the section wasn't built (either it failed, or it was excluded by
// include_sections and never populated).
func sectionBody(r *MarketReport, tag string) (string, bool) {
	switch tag {
	case SectionPriceOverview:
		if r.PriceOverview == nil {
			return "", false
		}
		po := r.PriceOverview
		return fmt.Sprintf("- Last: %s (%.2f%%)\n- 24h High/Low: %s / %s\n- 24h Volume: %s",
			po.LastPrice, po.PriceChangePct, po.High24h, po.Low24h, po.Volume24h), true
	case SectionOrderBook:
		if r.OrderBook == nil {
			return "", false
		}
		ob := r.OrderBook
		return fmt.Sprintf("- Best bid/ask: %s / %s\n- Mid: %s  Spread: %.2fbps",
			ob.L1.BestBid, ob.L1.BestAsk, ob.L1.Mid, ob.L1.SpreadBps), true
	case SectionLiquidity:
		if r.Liquidity == nil {
			return "", false
		}
		l := r.Liquidity
		return fmt.Sprintf("- POC/VAH/VAL: %.4f / %.4f / %.4f\n- Vacuums detected: %d",
			l.Profile.POC, l.Profile.VAH, l.Profile.VAL, len(l.Vacuums)), true
	case SectionMicrostructure:
		if r.Microstructure == nil {
			return "", false
		}
		m := r.Microstructure
		return fmt.Sprintf("- Flow direction: %s (net %.4f)", m.Flow.Direction, m.Flow.NetFlow), true
	case SectionAnomalies:
		if r.Anomalies == nil {
			return "", false
		}
		if len(r.Anomalies.Anomalies) == 0 {
			return "- none detected", true
		}
		var buf bytes.Buffer
		for _, a := range r.Anomalies.Anomalies {
			fmt.Fprintf(&buf, "- [%s] %s: %s\n", a.Severity, a.Type, a.Description)
		}
		return buf.String(), true
	case SectionHealth:
		if r.Health == nil {
			return "", false
		}
		h := r.Health.Health
		return fmt.Sprintf("- Composite: %.1f (%s)", h.Composite, h.Label), true
	case SectionDataHealth:
		if r.DataHealth == nil {
			return "", false
		}
		s := r.DataHealth.Status
		return fmt.Sprintf("- Connected: %v  Needs resync: %v", s.Connected, s.NeedsResync), true
	}
	return "", false
}

// reasonFor looks up the recorded failure reason for tag, falling
// back to a generic message when the section was not built but no
// error was recorded for it (e.g. anomalies and health, which are
// skipped when the data-health section fails).
func reasonFor(r *MarketReport, tag string) string {
	for _, se := range r.Errors {
		if se.Section == tag {
			return se.Message
		}
	}
	return "DataSourceUnavailable"
}

// buildRenderModel resolves r.Sections into its rendered bodies,
// substituting the literal "[Data Unavailable: <reason>]" placeholder
// (spec.md §7) for any section that didn't build.
func buildRenderModel(r MarketReport) renderModel {
	sections := make([]renderedSection, 0, len(r.Sections))
	for _, tag := range r.Sections {
		body, ok := sectionBody(&r, tag)
		if !ok {
			body = fmt.Sprintf("[Data Unavailable: %s]", reasonFor(&r, tag))
		}
		sections = append(sections, renderedSection{Title: sectionTitles[tag], Body: body})
	}
	return renderModel{MarketReport: r, RenderedSections: sections}
}

// RenderMarkdown renders a MarketReport to Markdown via text/template.
// Every section named in r.Sections (the include_sections-resolved
// list) gets a heading; one that failed to build renders the literal
// "[Data Unavailable: <reason>]" placeholder instead of being silently
// dropped (spec.md §4.5 step 4, §7).
func RenderMarkdown(r MarketReport) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, buildRenderModel(r)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
