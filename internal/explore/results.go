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

// ResultsBackend fetches the artefacts of a finished job.
type ResultsBackend interface {
	Report(ctx context.Context) (pulse.Report, json.RawMessage, error)
	Quotes(ctx context.Context, subtopic string) ([]pulse.Quote, error)
	AggregatedQuotes(ctx context.Context, themes []string) (pulse.Aggregate, error)
}

type reportMsg struct {
	generation int
	report     pulse.Report
	raw        json.RawMessage
	err        error
}

type quotesMsg struct {
	generation int
	subtopic   string
	quotes     []pulse.Quote
	err        error
}

type aggregateMsg struct {
	generation int
	themes     []string
	aggregate  pulse.Aggregate
	err        error
}

// Results caches everything fetched for one job generation. Starting a new
// generation invalidates the cache.
type Results struct {
	backend    ResultsBackend
	timeout    time.Duration
	log        *log.Logger
	generation int

	report     *pulse.Report
	raw        json.RawMessage
	reportErr  error
	loading    bool
	order      []string
	paginators map[string]*Paginator

	aggregate    *pulse.Aggregate
	aggregateErr error
}

// NewResults returns an empty store. A nil logger discards output.
func NewResults(backend ResultsBackend, timeout time.Duration, logger *log.Logger) *Results {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Results{
		backend:    backend,
		timeout:    timeout,
		log:        logger.WithPrefix("results"),
		paginators: map[string]*Paginator{},
	}
}

// Invalidate drops every cached value and binds the store to generation.
func (r *Results) Invalidate(generation int) {
	r.generation = generation
	r.report = nil
	r.raw = nil
	r.reportErr = nil
	r.loading = false
	r.order = nil
	r.paginators = map[string]*Paginator{}
	r.aggregate = nil
	r.aggregateErr = nil
}

// Generation is the job generation the cache belongs to.
func (r *Results) Generation() int { return r.generation }

// Report returns the cached report.
func (r *Results) Report() (pulse.Report, bool) {
	if r.report == nil {
		return pulse.Report{}, false
	}
	return *r.report, true
}

// ReportErr is the last report fetch failure.
func (r *Results) ReportErr() error { return r.reportErr }

// ReportLoading reports whether a report fetch is in flight.
func (r *Results) ReportLoading() bool { return r.loading }

// FetchReport loads the report for generation. It returns nil when the
// report is cached, already loading, or generation is not current.
func (r *Results) FetchReport(generation int) tea.Cmd {
	if generation != r.generation {
		r.log.Debug("report requested for stale generation", "generation", generation, "current", r.generation)
		return nil
	}
	if r.report != nil || r.loading {
		return nil
	}
	r.loading = true
	r.reportErr = nil
	backend := r.backend
	timeout := r.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		report, raw, err := backend.Report(ctx)
		return reportMsg{generation: generation, report: report, raw: raw, err: err}
	}
}

// applyReport stores a fetched report and reports whether it was accepted.
func (r *Results) applyReport(msg reportMsg) bool {
	if msg.generation != r.generation {
		r.log.Debug("dropping stale report", "generation", msg.generation)
		return false
	}
	r.loading = false
	if msg.err != nil {
		r.log.Error("report fetch failed", "generation", msg.generation, "err", msg.err)
		r.reportErr = msg.err
		return false
	}
	report := msg.report
	r.report = &report
	r.raw = msg.raw
	r.order = r.order[:0]
	r.paginators = make(map[string]*Paginator, len(report.Codes))
	for _, code := range report.Codes {
		if _, dup := r.paginators[code.Name]; dup {
			r.log.Warn("duplicate subtopic in report", "name", code.Name)
			continue
		}
		r.paginators[code.Name] = newPaginator(code.Name)
		r.order = append(r.order, code.Name)
	}
	r.log.Info("report loaded", "generation", msg.generation, "subtopics", len(r.order))
	return true
}

// Subtopics lists subtopic names in report order.
func (r *Results) Subtopics() []string {
	return append([]string(nil), r.order...)
}

// Subtopic returns the paginator for name, or nil.
func (r *Results) Subtopic(name string) *Paginator {
	return r.paginators[name]
}

// FetchQuotesForSubtopic expands name and, on first expansion, loads its
// quotes. Only one fetch per subtopic is ever in flight.
func (r *Results) FetchQuotesForSubtopic(name string) tea.Cmd {
	p := r.paginators[name]
	if p == nil {
		return nil
	}
	if !p.expand() {
		return nil
	}
	generation := r.generation
	backend := r.backend
	timeout := r.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		quotes, err := backend.Quotes(ctx, name)
		return quotesMsg{generation: generation, subtopic: name, quotes: quotes, err: err}
	}
}

// CollapseSubtopic hides name without discarding its quotes.
func (r *Results) CollapseSubtopic(name string) {
	if p := r.paginators[name]; p != nil {
		p.Collapse()
	}
}

func (r *Results) applyQuotes(msg quotesMsg) {
	if msg.generation != r.generation {
		r.log.Debug("dropping stale quotes", "generation", msg.generation, "subtopic", msg.subtopic)
		return
	}
	p := r.paginators[msg.subtopic]
	if p == nil {
		return
	}
	if msg.err != nil {
		r.log.Warn("quote fetch failed", "subtopic", msg.subtopic, "err", msg.err)
	}
	p.finishLoad(msg.quotes, msg.err)
}

// FetchAggregatedQuotes loads quotes for every theme in one request.
func (r *Results) FetchAggregatedQuotes(themes []string) tea.Cmd {
	generation := r.generation
	backend := r.backend
	timeout := r.timeout
	themes = append([]string(nil), themes...)
	r.aggregateErr = nil
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		agg, err := backend.AggregatedQuotes(ctx, themes)
		return aggregateMsg{generation: generation, themes: themes, aggregate: agg, err: err}
	}
}

// applyAggregate reports whether msg belonged to the current generation. A
// failure leaves any previous aggregate in place.
func (r *Results) applyAggregate(msg aggregateMsg) bool {
	if msg.generation != r.generation {
		r.log.Debug("dropping stale aggregate", "generation", msg.generation)
		return false
	}
	if msg.err != nil {
		r.log.Error("aggregate fetch failed", "themes", len(msg.themes), "err", msg.err)
		r.aggregateErr = msg.err
		return true
	}
	agg := msg.aggregate
	r.aggregate = &agg
	r.aggregateErr = nil
	return true
}

// Aggregate returns the last successful aggregation.
func (r *Results) Aggregate() (pulse.Aggregate, bool) {
	if r.aggregate == nil {
		return pulse.Aggregate{}, false
	}
	return *r.aggregate, true
}

// AggregateErr is the last aggregation failure.
func (r *Results) AggregateErr() error { return r.aggregateErr }
