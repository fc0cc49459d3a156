package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/pulse"
)

func (m *model) View() string {
	var body string
	switch m.stage {
	case stageSearch:
		body = m.viewSearch()
	case stageCommunities:
		body = m.viewCommunities()
	case stageThemes:
		body = m.viewThemes()
	case stageAnalysing:
		body = m.viewAnalysing()
	case stageReport:
		m.refreshViewportIfDirty()
		body = m.viewport.View()
	}
	parts := []string{m.heroView(), body}
	if m.notice != "" {
		parts = append(parts, noticeBoxStyle.Render(m.notice+"\n\n"+helperStyle.Render(noticeDismissHint)))
	}
	parts = append(parts, m.messagesView())
	if m.helpVisible {
		parts = append(parts, m.keyLegendView())
	}
	parts = append(parts, m.sessionMeterView())
	return joinNonEmpty(parts)
}

func (m *model) messagesView() string {
	var parts []string
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		message := m.infoMessage
		if m.loading {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		parts = append(parts, helperStyle.Render(message))
	}
	return strings.Join(parts, "\n")
}

func (m *model) viewSearch() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Search"))
	b.WriteRune('\n')
	b.WriteString(m.searchInput.View())
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Enter to search • Esc to quit"))
	return b.String()
}

func (m *model) viewCommunities() string {
	title := fmt.Sprintf("Communities discussing %q", m.topic)
	items := make([]string, len(m.communities))
	for i, name := range m.communities {
		items[i] = "r/" + name
	}
	return m.listView(title, items, nil, "Enter to load themes • Esc to search again")
}

func (m *model) viewThemes() string {
	title := fmt.Sprintf("Themes in r/%s", m.community)
	items := make([]string, len(m.themes))
	details := make([]string, len(m.themes))
	wrap := m.wrapWidth(quoteIndent)
	for i, theme := range m.themes {
		items[i] = theme.Title
		if pct := theme.Percentage.String(); pct != "" {
			items[i] += "  " + percentStyle.Render(pct)
		}
		if theme.Description != "" {
			details[i] = indentMultiline(wordwrap.String(theme.Description, wrap), "    ")
		}
	}
	return m.listView(title, items, details, "Enter to analyse • Esc to pick another community")
}

func (m *model) listView(title string, items, details []string, hint string) string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(title))
	b.WriteRune('\n')
	for i, item := range items {
		line := "  " + item
		if i == m.listCursor {
			line = currentLineStyle.Render("▸ " + item)
		}
		b.WriteString(line)
		b.WriteRune('\n')
		if details != nil && details[i] != "" {
			b.WriteString(helperStyle.Render(details[i]))
			b.WriteRune('\n')
		}
	}
	b.WriteString(helperStyle.Render(hint))
	return b.String()
}

func (m *model) viewAnalysing() string {
	job := m.session.Job()
	req := m.session.Request()
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Analysing %q in r/%s", req.Theme, req.Community)))
	b.WriteRune('\n')
	b.WriteString(m.spinner.View() + " " + stageLabel(job))
	b.WriteRune('\n')
	b.WriteString(m.progress.ViewAs(float64(job.Progress) / 100))
	b.WriteRune('\n')
	if m.session.Results().ReportLoading() {
		b.WriteString(helperStyle.Render("Loading results…"))
		b.WriteRune('\n')
	}
	b.WriteString(helperStyle.Render("Esc to cancel"))
	return b.String()
}

func stageLabel(job explore.Job) string {
	if job.State == explore.StateStarting {
		return stageStartingText
	}
	switch job.Stage {
	case pulse.StageGenerating:
		return stageGeneratingText
	case pulse.StageCollecting:
		return stageCollectingText
	}
	if job.State == explore.StateCompleted {
		return "Finishing up…"
	}
	return stageCollectingText
}

func (m *model) heroView() string {
	logo := renderLogo()
	req := m.session.Request()
	if m.stage != stageReport || req.Theme == "" {
		return lipgloss.JoinVertical(lipgloss.Left, logo, taglineStyle.Render(heroTagline))
	}
	title := heroTitleStyle.Render(wordwrap.String(req.Theme, 48))
	meta := []string{helperStyle.Render("Community: r/" + req.Community)}
	if report, ok := m.session.Results().Report(); ok {
		meta = append(meta, helperStyle.Render(fmt.Sprintf("Subtopics: %d", len(report.Codes))))
	}
	content := strings.Join(append([]string{title}, meta...), "\n")
	panel := lipgloss.JoinHorizontal(lipgloss.Top, logo, heroSummaryStyle.Render(heroBoxStyle.Render(content)))
	return lipgloss.JoinVertical(lipgloss.Left, panel, taglineStyle.Render(heroTagline))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func (m *model) sessionMeterView() string {
	job := m.session.Job()
	stats := []string{m.stage.String()}
	if job.Generation > 0 {
		stats = append(stats, fmt.Sprintf("Job #%d %s", job.Generation, job.State))
	}
	if job.State == explore.StateRunning {
		stats = append(stats, fmt.Sprintf("%d%%", job.Progress))
	}
	if m.stage == stageReport {
		stats = append(stats, fmt.Sprintf("Selected %d", m.session.Selection().Count()))
	}
	stats = append(stats, m.jobs.Badges()...)
	stats = append(stats, "? help")
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyHints() []keyHint {
	switch m.stage {
	case stageReport:
		return []keyHint{
			{"↑/↓", "Move"},
			{"Enter", "Expand/collapse"},
			{"+/-", "More/less quotes"},
			{"Space", "Select theme"},
			{"a", "Quotes for selection"},
			{"e", "Export report"},
			{"g/G", "Top or bottom"},
			{"r", "New search"},
			{"Esc", "Close quotes"},
		}
	case stageAnalysing:
		return []keyHint{{"Esc", "Cancel analysis"}, {"Ctrl+C", "Quit"}}
	default:
		return []keyHint{
			{"↑/↓", "Move"},
			{"Enter", "Choose"},
			{"Esc", "Back"},
			{"Ctrl+C", "Quit"},
		}
	}
}

func (m *model) keyLegendView() string {
	hints := m.keyHints()
	rows := []string{sectionHeaderStyle.Render("Keys")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := min(i+columns, len(hints))
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func renderLogo() string {
	if len(logoArtLines) == 0 {
		return ""
	}
	width := 0
	lineRunes := make([][]rune, len(logoArtLines))
	for i, line := range logoArtLines {
		runes := []rune(line)
		lineRunes[i] = runes
		if len(runes) > width {
			width = len(runes)
		}
	}
	width++
	height := len(logoArtLines) + 1

	type cell struct {
		r     rune
		style lipgloss.Style
	}

	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r != ' ' {
				grid[y+1][x+1] = cell{r: r, style: logoShadowStyle}
			}
		}
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r != ' ' {
				grid[y][x] = cell{r: r, style: logoFaceStyle}
			}
		}
	}

	lines := make([]string, height)
	for y, row := range grid {
		var b strings.Builder
		for _, c := range row {
			if c.r == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(c.style.Render(string(c.r)))
		}
		lines[y] = b.String()
	}
	return logoContainerStyle.Render(strings.Join(lines, "\n"))
}
