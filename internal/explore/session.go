package explore

import (
	"context"
	"encoding/json"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/csheth/policypulse/internal/pulse"
)

// Backend is everything a Session needs from the analysis API.
type Backend interface {
	CreateJob(ctx context.Context, req pulse.JobRequest) error
	JobStatus(ctx context.Context) (pulse.JobStatus, error)
	Report(ctx context.Context) (pulse.Report, json.RawMessage, error)
	Quotes(ctx context.Context, subtopic string) ([]pulse.Quote, error)
	AggregatedQuotes(ctx context.Context, themes []string) (pulse.Aggregate, error)
}

// Options tunes a Session. Zero values select defaults.
type Options struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// Session ties one job, its results and the theme selection together. All
// methods must be called from the program's update loop.
type Session struct {
	jobs      *Controller
	results   *Results
	selection *Selection
	request   pulse.JobRequest
	log       *log.Logger
}

// NewSession returns an idle session.
func NewSession(backend Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Session{
		results:   NewResults(backend, opts.RequestTimeout, logger),
		selection: NewSelection(),
		log:       logger,
	}
	s.jobs = NewController(backend, ControllerOptions{
		PollInterval:   opts.PollInterval,
		RequestTimeout: opts.RequestTimeout,
		Logger:         logger,
		OnComplete:     s.results.FetchReport,
	})
	return s
}

// Start launches an analysis of theme within community. Cached results from
// an earlier job are discarded once the start is accepted.
func (s *Session) Start(req pulse.JobRequest) (tea.Cmd, error) {
	req.Community = pulse.NormalizeCommunity(req.Community)
	cmd, err := s.jobs.Start(req)
	if err != nil {
		return nil, err
	}
	s.request = req
	s.results.Invalidate(s.jobs.Job().Generation)
	s.selection.Reset(nil)
	return cmd, nil
}

// Update routes engine messages. Unknown messages are ignored.
func (s *Session) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case jobCreatedMsg, pollTickMsg, jobStatusMsg:
		return s.jobs.Update(msg)
	case reportMsg:
		if s.results.applyReport(msg) {
			s.selection.Reset(msg.report.Names())
		}
	case quotesMsg:
		s.results.applyQuotes(msg)
	case aggregateMsg:
		if s.results.applyAggregate(msg) {
			s.selection.resolve()
		}
	}
	return nil
}

// Owns reports whether msg is handled by Update.
func Owns(msg tea.Msg) bool {
	switch msg.(type) {
	case jobCreatedMsg, pollTickMsg, jobStatusMsg, reportMsg, quotesMsg, aggregateMsg:
		return true
	}
	return false
}

// Teardown stops polling. Late responses for the torn down job are dropped.
func (s *Session) Teardown() {
	s.jobs.Teardown()
}

// Dismiss acknowledges a completed or failed job.
func (s *Session) Dismiss() bool {
	return s.jobs.Dismiss()
}

func (s *Session) Job() Job { return s.jobs.Job() }

// Request is the community and theme of the most recently started job.
func (s *Session) Request() pulse.JobRequest { return s.request }

func (s *Session) Results() *Results { return s.results }

func (s *Session) Selection() *Selection { return s.selection }

// Toggle flips a theme in the aggregation selection.
func (s *Session) Toggle(name string) error {
	return s.selection.Toggle(name)
}

// RequestAggregatedQuotes fetches quotes for the current selection.
func (s *Session) RequestAggregatedQuotes() (tea.Cmd, error) {
	themes, err := s.selection.begin()
	if err != nil {
		return nil, err
	}
	s.log.Info("requesting aggregated quotes", "themes", len(themes))
	return s.results.FetchAggregatedQuotes(themes), nil
}

// Export renders the current report named after the analysed theme.
func (s *Session) Export() (Artifact, error) {
	return s.results.Export(s.request.Theme)
}
