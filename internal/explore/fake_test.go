package explore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/policypulse/internal/pulse"
)

type statusReply struct {
	status pulse.JobStatus
	err    error
}

type fakeBackend struct {
	mu sync.Mutex

	createErr error
	creates   []pulse.JobRequest

	statuses    []statusReply
	statusCalls int
	blockStatus bool

	report      pulse.Report
	raw         json.RawMessage
	reportErr   error
	reportCalls int

	quotes     map[string][]pulse.Quote
	quoteErrs  map[string][]error
	quoteCalls map[string]int

	agg      pulse.Aggregate
	aggErr   error
	aggCalls [][]string
}

func (f *fakeBackend) CreateJob(ctx context.Context, req pulse.JobRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	return f.createErr
}

func (f *fakeBackend) JobStatus(ctx context.Context) (pulse.JobStatus, error) {
	f.mu.Lock()
	block := f.blockStatus
	f.statusCalls++
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return pulse.JobStatus{}, fmt.Errorf("job status: %w: %w", pulse.ErrNetwork, ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return pulse.JobStatus{}, nil
	}
	reply := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return reply.status, reply.err
}

func (f *fakeBackend) Report(ctx context.Context) (pulse.Report, json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportCalls++
	if f.reportErr != nil {
		return pulse.Report{}, nil, f.reportErr
	}
	return f.report, f.raw, nil
}

func (f *fakeBackend) Quotes(ctx context.Context, subtopic string) ([]pulse.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quoteCalls == nil {
		f.quoteCalls = map[string]int{}
	}
	f.quoteCalls[subtopic]++
	if errs := f.quoteErrs[subtopic]; len(errs) > 0 {
		err := errs[0]
		f.quoteErrs[subtopic] = errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.quotes[subtopic], nil
}

func (f *fakeBackend) AggregatedQuotes(ctx context.Context, themes []string) (pulse.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggCalls = append(f.aggCalls, append([]string(nil), themes...))
	if f.aggErr != nil {
		return pulse.Aggregate{}, f.aggErr
	}
	return f.agg, nil
}

func running(stage pulse.Stage, progress int) statusReply {
	return statusReply{status: pulse.JobStatus{Running: true, Stage: stage, Progress: &progress}}
}

func finished() statusReply {
	return statusReply{status: pulse.JobStatus{Running: false}}
}

// drain executes cmd and feeds every resulting message back into update
// until the chain ends.
func drain(t *testing.T, update func(tea.Msg) tea.Cmd, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 200 {
			t.Fatal("command chain did not settle")
		}
		cmd = update(cmd())
	}
}

func makeQuotes(n int) []pulse.Quote {
	quotes := make([]pulse.Quote, n)
	for i := range quotes {
		quotes[i] = pulse.Quote{Text: fmt.Sprintf("quote %d", i+1), Subreddit: "nyc"}
	}
	return quotes
}

const sampleReport = `{"totalPosts":42,"codes":[{"name":"Noise Ordinance","description":"Rules on noise","percentage":"40%"},{"name":"Enforcement","description":"Who responds","percentage":"35%"},{"name":"Nightlife","description":"Bars and venues","percentage":"25%"}]}`

func newReportBackend(t *testing.T) *fakeBackend {
	t.Helper()
	var report pulse.Report
	if err := json.Unmarshal([]byte(sampleReport), &report); err != nil {
		t.Fatalf("decode sample report: %v", err)
	}
	return &fakeBackend{
		statuses: []statusReply{running(pulse.StageCollecting, 20), finished()},
		report:   report,
		raw:      json.RawMessage(sampleReport),
		quotes: map[string][]pulse.Quote{
			"Noise Ordinance": makeQuotes(7),
			"Enforcement":     makeQuotes(12),
			"Nightlife":       makeQuotes(2),
		},
	}
}

// completedSession runs a full job against backend and returns the session
// with its report loaded.
func completedSession(t *testing.T, backend *fakeBackend) *Session {
	t.Helper()
	s := NewSession(backend, Options{PollInterval: 1})
	cmd, err := s.Start(pulse.JobRequest{Community: "r/nyc", Theme: "Noise Complaints"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	drain(t, s.Update, cmd)
	if _, ok := s.Results().Report(); !ok {
		t.Fatalf("expected report after completed job, job=%+v", s.Job())
	}
	return s
}
