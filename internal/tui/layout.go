package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/pulse"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	// hero, status bar and messages
	const chrome = 14
	contentHeight := height - chrome
	if contentHeight < 6 {
		contentHeight = 6
	}
	l.viewportHeight = contentHeight
}

type reportView struct {
	content       string
	subtopicLines map[int]int
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (m *model) buildReportContent() reportView {
	cb := &contentBuilder{}
	lines := map[int]int{}
	results := m.session.Results()
	selection := m.session.Selection()
	report, ok := results.Report()
	if !ok {
		return reportView{content: helperStyle.Render("No report loaded."), subtopicLines: lines}
	}

	cb.WriteString(sectionHeaderStyle.Render("Subtopics"))
	if report.TotalPosts != nil {
		cb.WriteString(helperStyle.Render(fmt.Sprintf("  from %d posts", *report.TotalPosts)))
	}
	cb.WriteRune('\n')
	if len(report.Codes) == 0 {
		cb.WriteString(helperStyle.Render("The analysis found no subtopics."))
		cb.WriteRune('\n')
	}

	descWrap := m.wrapWidth(quoteIndent)
	for idx, name := range results.Subtopics() {
		code := codeByName(report, name)
		lines[idx] = cb.Line()
		mark := "[ ]"
		if selection.Selected(name) {
			mark = selectedMarkStyle.Render("[x]")
		}
		arrow := "▸"
		p := results.Subtopic(name)
		if p != nil && p.Expanded() {
			arrow = "▾"
		}
		header := fmt.Sprintf("%s %s %s", arrow, mark, name)
		if idx == m.cursor {
			header = currentLineStyle.Render(header)
		}
		cb.WriteString(header)
		if pct := code.Percentage.String(); pct != "" {
			cb.WriteString("  " + percentStyle.Render(pct))
		}
		cb.WriteRune('\n')
		if desc := strings.TrimSpace(code.Description); desc != "" {
			cb.WriteString(helperStyle.Render(indentMultiline(wordwrap.String(desc, descWrap), "    ")))
			cb.WriteRune('\n')
		}
		if p != nil && p.Expanded() {
			m.writeSubtopicQuotes(cb, p)
		}
	}

	if selection.Visible() {
		cb.WriteRune('\n')
		cb.WriteString(keyStyle.Render("a") + " " + selection.Label())
		cb.WriteRune('\n')
	}
	if m.showAggregate {
		cb.WriteRune('\n')
		m.writeAggregate(cb)
	}
	return reportView{content: strings.TrimRight(cb.String(), "\n"), subtopicLines: lines}
}

func (m *model) writeSubtopicQuotes(cb *contentBuilder, p *explore.Paginator) {
	const pad = "      "
	switch {
	case p.Loading():
		cb.WriteString(pad + m.spinner.View() + helperStyle.Render(" Loading quotes…"))
		cb.WriteRune('\n')
		return
	case p.Err() != nil:
		cb.WriteString(pad + errorStyle.Render(fmt.Sprintf("Couldn't load quotes: %v", p.Err())))
		cb.WriteRune('\n')
		cb.WriteString(pad + helperStyle.Render("Collapse and expand to retry."))
		cb.WriteRune('\n')
		return
	case p.Total() == 0:
		cb.WriteString(pad + helperStyle.Render("No quotes for this subtopic."))
		cb.WriteRune('\n')
		return
	}
	m.writeQuotes(cb, p.Visible(), pad, false)
	controls := []string{fmt.Sprintf("Showing %d of %d", p.Index(), p.Total())}
	if p.CanShowMore() {
		controls = append(controls, "+ more")
	}
	if p.CanShowLess() {
		controls = append(controls, "- less")
	}
	cb.WriteString(pad + helperStyle.Render(strings.Join(controls, " • ")))
	cb.WriteRune('\n')
}

func (m *model) writeQuotes(cb *contentBuilder, quotes []pulse.Quote, pad string, withTags bool) {
	wrap := m.wrapWidth(len(pad) + 2)
	for _, quote := range quotes {
		text := wordwrap.String("“"+strings.TrimSpace(quote.Text)+"”", wrap)
		cb.WriteString(quoteStyle.Render(indentMultiline(text, pad)))
		cb.WriteRune('\n')
		if meta := quoteMeta(quote); meta != "" {
			cb.WriteString(pad + helperStyle.Render("— "+meta))
			cb.WriteRune('\n')
		}
		if withTags {
			if len(quote.Codes) > 0 {
				cb.WriteString(pad + helperStyle.Render("Codes: "+strings.Join(quote.Codes, ", ")))
				cb.WriteRune('\n')
			}
			if len(quote.Themes) > 0 {
				cb.WriteString(pad + helperStyle.Render("Themes: "+strings.Join(quote.Themes, ", ")))
				cb.WriteRune('\n')
			}
		}
	}
}

func (m *model) writeAggregate(cb *contentBuilder) {
	results := m.session.Results()
	cb.WriteString(sectionHeaderStyle.Render("Selected Themes"))
	cb.WriteRune('\n')
	if m.session.Selection().Pending() {
		cb.WriteString(m.spinner.View() + helperStyle.Render(" Loading quotes for selected themes…"))
		cb.WriteRune('\n')
		return
	}
	agg, ok := results.Aggregate()
	if !ok {
		if err := results.AggregateErr(); err != nil {
			cb.WriteString(errorStyle.Render(err.Error()))
			cb.WriteRune('\n')
		}
		return
	}
	cb.WriteString(aggregateHeader(agg))
	cb.WriteRune('\n')
	themes := append([]string(nil), agg.Themes...)
	if len(themes) == 0 {
		for theme := range agg.QuotesByTheme {
			themes = append(themes, theme)
		}
		sort.Strings(themes)
	}
	for _, theme := range themes {
		quotes := agg.QuotesByTheme[theme]
		cb.WriteRune('\n')
		cb.WriteString(heroTitleStyle.Render(fmt.Sprintf("%s (%d)", theme, len(quotes))))
		cb.WriteRune('\n')
		if len(quotes) == 0 {
			cb.WriteString("  " + helperStyle.Render("No quotes for this theme."))
			cb.WriteRune('\n')
			continue
		}
		m.writeQuotes(cb, quotes, "  ", true)
	}
}

func aggregateHeader(agg pulse.Aggregate) string {
	themes := len(agg.Themes)
	if themes == 0 {
		themes = len(agg.QuotesByTheme)
	}
	return fmt.Sprintf("Found %d quotes across %d themes", agg.TotalQuotes, themes)
}

func quoteMeta(quote pulse.Quote) string {
	var parts []string
	if quote.Subreddit != "" {
		parts = append(parts, "r/"+quote.Subreddit)
	}
	if quote.Score != 0 {
		parts = append(parts, fmt.Sprintf("%d points", quote.Score))
	}
	if s := strings.TrimSpace(quote.Summary); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " · ")
}

func codeByName(report pulse.Report, name string) pulse.Code {
	for _, code := range report.Codes {
		if code.Name == name {
			return code
		}
	}
	return pulse.Code{Name: name}
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
