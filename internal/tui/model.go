package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/pulse"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Backend        Backend
	ExportDir      string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	searchInput := textinput.New()
	searchInput.Placeholder = searchPlaceholder
	searchInput.Focus()
	searchInput.CharLimit = 120
	searchInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:      config,
		log:         logger.WithPrefix("tui"),
		stage:       stageSearch,
		jobs:        newJobBus(logger),
		searchInput: searchInput,
		spinner:     spin,
		progress:    bar,
		viewport:    vp,
		layout:      newPageLayout(),
		session: explore.NewSession(config.Backend, explore.Options{
			PollInterval:   config.PollInterval,
			RequestTimeout: config.RequestTimeout,
			Logger:         logger,
		}),
		subtopicLines: map[int]int{},
		viewportDirty: true,
		infoMessage:   "Search a topic to find communities discussing it.",
	}
}

type model struct {
	config Config
	log    *log.Logger
	stage  stage
	jobs   *jobBus

	searchInput textinput.Model
	spinner     spinner.Model
	progress    progress.Model
	viewport    viewport.Model
	layout      pageLayout

	session *explore.Session

	topic       string
	communities []string
	community   string
	themes      []pulse.Theme
	listCursor  int
	loading     bool

	cursor        int
	showAggregate bool
	subtopicLines map[int]int
	lineCount     int
	viewportDirty bool

	infoMessage  string
	errorMessage string
	notice       string
	helpVisible  bool
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) busy() bool {
	return m.loading || m.stage == stageAnalysing || m.session.Selection().Pending() ||
		m.session.Results().ReportLoading()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if explore.Owns(msg) {
		cmd := m.session.Update(msg)
		m.syncSession()
		return m, cmd
	}
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.session.Teardown()
			return m, tea.Quit
		}
		if m.notice != "" {
			return m, m.dismissNotice()
		}
		if msg.Type == tea.KeyEsc {
			return m.handleEsc()
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageReport {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.jobs.Track(msg.Snapshot)
		return m, nil
	case jobResultEnvelope:
		m.jobs.Track(msg.Snapshot)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case relatedResultMsg:
		return m, m.handleRelated(msg)
	case themesResultMsg:
		return m, m.handleThemes(msg)
	case exportResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("Export failed: %v", msg.err)
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Report exported to %s", msg.path)
		return m, nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.progress.Width = min(m.layout.viewportWidth, 80)
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

// syncSession moves the screen along with the engine after each engine message.
func (m *model) syncSession() {
	job := m.session.Job()
	results := m.session.Results()
	if m.stage == stageAnalysing {
		switch job.State {
		case explore.StateFailed:
			m.notice = fmt.Sprintf("Analysis failed: %v", job.Err)
		case explore.StateIdle:
			if job.Err != nil {
				m.stage = stageThemes
				if errors.Is(job.Err, explore.ErrAlreadyRunning) {
					m.errorMessage = alreadyRunningText
				} else {
					m.errorMessage = fmt.Sprintf("Could not start analysis: %v", job.Err)
				}
			}
		case explore.StateCompleted:
			if _, ok := results.Report(); ok {
				m.stage = stageReport
				m.cursor = 0
				m.showAggregate = false
				m.viewport.SetYOffset(0)
				m.errorMessage = ""
				m.infoMessage = "Analysis complete. Enter expands a subtopic, space selects it."
			} else if err := results.ReportErr(); err != nil {
				m.notice = fmt.Sprintf("Failed to load results: %v", err)
			}
		}
	}
	if m.stage == stageReport {
		if err := results.AggregateErr(); err != nil {
			m.errorMessage = fmt.Sprintf("Could not load selected themes: %v", err)
		}
	}
	m.markViewportDirty()
}

func (m *model) dismissNotice() tea.Cmd {
	m.notice = ""
	if m.session.Dismiss() || m.stage == stageAnalysing {
		m.stage = stageThemes
		m.infoMessage = "Pick a theme to try again."
	}
	return nil
}

func (m *model) handleEsc() (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageAnalysing:
		m.session.Teardown()
		m.stage = stageThemes
		m.infoMessage = "Analysis cancelled."
		return m, nil
	case stageThemes:
		m.stage = stageCommunities
		m.listCursor = indexOf(m.communities, m.community)
		return m, nil
	case stageCommunities:
		m.stage = stageSearch
		m.searchInput.Focus()
		return m, nil
	case stageReport:
		if m.showAggregate {
			m.showAggregate = false
			m.markViewportDirty()
			return m, nil
		}
		if m.helpVisible {
			m.helpVisible = false
			return m, nil
		}
		return m, nil
	default:
		m.session.Teardown()
		return m, tea.Quit
	}
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stageSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(key)
		if key.Type == tea.KeyEnter {
			return m, tea.Batch(cmd, m.submitSearch())
		}
		return m, cmd
	case stageCommunities:
		return m, m.handleListKey(key, len(m.communities), m.chooseCommunity)
	case stageThemes:
		return m, m.handleListKey(key, len(m.themes), m.chooseTheme)
	case stageAnalysing:
		return m, nil
	case stageReport:
		return m.handleReportKey(key)
	default:
		return m, nil
	}
}

func (m *model) submitSearch() tea.Cmd {
	topic := strings.TrimSpace(m.searchInput.Value())
	if topic == "" {
		m.errorMessage = blankSearchMessage
		return nil
	}
	if m.loading {
		return nil
	}
	m.topic = topic
	m.loading = true
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Finding communities for %q…", topic)
	return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindRelated, relatedCommunitiesJob(m.config.Backend, topic)))
}

func (m *model) handleRelated(msg relatedResultMsg) tea.Cmd {
	if msg.topic != m.topic || m.stage != stageSearch {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("Search failed: %v", msg.err)
		return nil
	}
	if len(msg.communities) == 0 {
		m.errorMessage = fmt.Sprintf("No communities found for %q.", msg.topic)
		return nil
	}
	m.communities = msg.communities
	m.listCursor = 0
	m.stage = stageCommunities
	m.searchInput.Blur()
	m.errorMessage = ""
	m.infoMessage = "Pick a community to explore."
	return nil
}

func (m *model) handleListKey(key tea.KeyMsg, count int, choose func() tea.Cmd) tea.Cmd {
	switch key.String() {
	case "up", "k":
		if m.listCursor > 0 {
			m.listCursor--
		}
	case "down", "j":
		if m.listCursor < count-1 {
			m.listCursor++
		}
	case "enter", "right", "l":
		if count > 0 {
			return choose()
		}
	case "?":
		m.helpVisible = !m.helpVisible
	}
	return nil
}

func (m *model) chooseCommunity() tea.Cmd {
	if m.loading {
		return nil
	}
	m.community = m.communities[m.listCursor]
	m.loading = true
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Loading themes for r/%s…", m.community)
	return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindThemes, themesJob(m.config.Backend, m.community)))
}

func (m *model) handleThemes(msg themesResultMsg) tea.Cmd {
	if msg.community != m.community || m.stage != stageCommunities {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("Could not load themes: %v", msg.err)
		return nil
	}
	if len(msg.themes) == 0 {
		m.errorMessage = fmt.Sprintf("No themes found for r/%s.", msg.community)
		return nil
	}
	m.themes = msg.themes
	m.listCursor = 0
	m.stage = stageThemes
	m.errorMessage = ""
	m.infoMessage = "Pick a theme to analyse."
	return nil
}

func (m *model) chooseTheme() tea.Cmd {
	theme := m.themes[m.listCursor]
	cmd, err := m.session.Start(pulse.JobRequest{Community: m.community, Theme: theme.Title})
	if err != nil {
		if errors.Is(err, explore.ErrAlreadyRunning) {
			m.errorMessage = alreadyRunningText
		} else {
			m.errorMessage = err.Error()
		}
		return nil
	}
	m.stage = stageAnalysing
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Analysing %q in r/%s.", theme.Title, m.community)
	m.log.Info("analysis requested", "community", m.community, "theme", theme.Title)
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *model) currentSubtopic() (string, bool) {
	names := m.session.Results().Subtopics()
	if m.cursor < 0 || m.cursor >= len(names) {
		return "", false
	}
	return names[m.cursor], true
}

func (m *model) handleReportKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	results := m.session.Results()
	var cmd tea.Cmd
	switch key.String() {
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "enter", "right", "l":
		name, ok := m.currentSubtopic()
		if !ok {
			return m, nil
		}
		if p := results.Subtopic(name); p != nil && p.Expanded() && key.String() == "enter" {
			results.CollapseSubtopic(name)
		} else {
			cmd = results.FetchQuotesForSubtopic(name)
		}
	case "left", "h":
		if name, ok := m.currentSubtopic(); ok {
			results.CollapseSubtopic(name)
		}
	case "+", "=":
		if p := m.expandedAtCursor(); p != nil {
			p.ShowMore()
		}
	case "-", "_":
		if p := m.expandedAtCursor(); p != nil {
			p.ShowLess()
		}
	case " ", "space":
		if name, ok := m.currentSubtopic(); ok {
			if err := m.session.Toggle(name); err != nil {
				m.errorMessage = err.Error()
			}
		}
	case "a":
		cmd = m.requestAggregate()
	case "e":
		cmd = m.export()
	case "r":
		m.restart()
		return m, nil
	case "?":
		m.helpVisible = !m.helpVisible
	case "pgdown", "pgup", "g", "G":
		switch key.String() {
		case "pgdown":
			m.viewport.HalfViewDown()
		case "pgup":
			m.viewport.HalfViewUp()
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}
		return m, nil
	default:
		return m, nil
	}
	m.markViewportDirty()
	return m, cmd
}

func (m *model) expandedAtCursor() *explore.Paginator {
	name, ok := m.currentSubtopic()
	if !ok {
		return nil
	}
	p := m.session.Results().Subtopic(name)
	if p == nil || !p.Expanded() {
		return nil
	}
	return p
}

func (m *model) requestAggregate() tea.Cmd {
	cmd, err := m.session.RequestAggregatedQuotes()
	switch {
	case errors.Is(err, explore.ErrEmptyInput):
		m.infoMessage = "Select at least one theme with space first."
		return nil
	case errors.Is(err, explore.ErrAggregatePending):
		m.infoMessage = "Quotes for the selected themes are still loading."
		return nil
	case err != nil:
		m.errorMessage = err.Error()
		return nil
	}
	m.showAggregate = true
	m.errorMessage = ""
	m.infoMessage = "Loading quotes for selected themes…"
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *model) export() tea.Cmd {
	artifact, err := m.session.Export()
	if err != nil {
		m.errorMessage = fmt.Sprintf("Export failed: %v", err)
		return nil
	}
	m.infoMessage = fmt.Sprintf("Writing %s…", artifact.Filename)
	return m.jobs.Start(jobKindExport, exportJob(m.config.ExportDir, artifact))
}

func (m *model) restart() {
	m.session.Teardown()
	m.stage = stageSearch
	m.topic = ""
	m.communities = nil
	m.community = ""
	m.themes = nil
	m.listCursor = 0
	m.loading = false
	m.cursor = 0
	m.showAggregate = false
	m.searchInput.SetValue("")
	m.searchInput.Focus()
	m.errorMessage = ""
	m.infoMessage = "Search a topic to find communities discussing it."
	m.markViewportDirty()
}

func (m *model) moveCursor(delta int) {
	count := len(m.session.Results().Subtopics())
	if count == 0 {
		return
	}
	target := m.cursor + delta
	if target < 0 {
		target = 0
	}
	if target >= count {
		target = count - 1
	}
	if target == m.cursor {
		return
	}
	m.cursor = target
	m.markViewportDirty()
	m.refreshViewportIfDirty()
	m.ensureCursorVisible()
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if m.viewportDirty {
		m.refreshViewport()
	}
}

func (m *model) refreshViewport() {
	m.viewportDirty = false
	if m.stage != stageReport {
		m.viewport.SetContent("")
		m.subtopicLines = map[int]int{}
		m.lineCount = 0
		return
	}
	prevYOffset := m.viewport.YOffset
	view := m.buildReportContent()
	m.subtopicLines = view.subtopicLines
	m.lineCount = strings.Count(view.content, "\n") + 1
	m.viewport.SetContent(view.content)
	m.viewport.SetYOffset(m.clampYOffset(prevYOffset))
}

func (m *model) ensureCursorVisible() {
	line, ok := m.subtopicLines[m.cursor]
	if !ok {
		return
	}
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
		return
	}
	lowerBound := m.viewport.YOffset + m.viewport.Height - 1
	if line > lowerBound {
		m.viewport.SetYOffset(m.clampYOffset(line - m.viewport.Height + 1))
	}
}

func (m *model) clampYOffset(offset int) int {
	maxOffset := m.lineCount - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset < 0 {
		return 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return 0
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	quoteStyle         = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#e0def4"))
	percentStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd166"))
	selectedMarkStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3be8c"))

	heroAccentColor        = lipgloss.Color("#2ec4b6")
	heroEmberColor         = lipgloss.Color("#011627")
	heroTextColor          = lipgloss.Color("#f1faee")
	heroSecondaryTextColor = lipgloss.Color("#8ecae6")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	heroBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Foreground(heroTextColor).Background(heroEmberColor).Padding(1, 2)
	heroSummaryStyle   = lipgloss.NewStyle().PaddingLeft(2)
	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	noticeBoxStyle     = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("9")).Padding(1, 2)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	logoFaceStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroEmberColor)
	logoShadowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#000814"))
	logoContainerStyle = lipgloss.NewStyle().Padding(0, 1)
	logoArtLines       = []string{
		"██████╗   ██╗   ██╗  ██╗       ███████╗  ███████╗",
		"██╔══██╗  ██║   ██║  ██║       ██╔════╝  ██╔════╝",
		"██████╔╝  ██║   ██║  ██║       ███████╗  █████╗  ",
		"██╔═══╝   ██║   ██║  ██║       ╚════██║  ██╔══╝  ",
		"██║       ╚██████╔╝  ███████╗  ███████║  ███████╗",
		"╚═╝        ╚═════╝   ╚══════╝  ╚══════╝  ╚══════╝",
	}
)
