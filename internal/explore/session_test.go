package explore

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/csheth/policypulse/internal/pulse"
)

func TestSessionLoadsReportOnce(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	s := completedSession(t, backend)

	if cmd := s.Results().FetchReport(s.Job().Generation); cmd != nil {
		t.Fatal("cached report must not be fetched again")
	}
	if backend.reportCalls != 1 {
		t.Fatalf("expected one report request, got %d", backend.reportCalls)
	}
	want := []string{"Noise Ordinance", "Enforcement", "Nightlife"}
	if got := s.Results().Subtopics(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected subtopics %v, got %v", want, got)
	}
	if got := s.Request().Community; got != "nyc" {
		t.Fatalf("expected normalized community, got %q", got)
	}
}

func TestSessionFetchesReportAfterFinalStatus(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	backend.statuses = []statusReply{
		running(pulse.StageCollecting, 10),
		running(pulse.StageGenerating, 55),
		finished(),
	}
	s := NewSession(backend, Options{PollInterval: 1})
	cmd, err := s.Start(pulse.JobRequest{Community: "nyc", Theme: "Noise Complaints"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	type seen struct {
		stage    pulse.Stage
		progress int
	}
	var progress []seen
	lastStatusCalls := 0
	for i := 0; cmd != nil; i++ {
		if i > 50 {
			t.Fatal("command chain did not settle")
		}
		before := backend.reportCalls
		msg := cmd()
		if backend.reportCalls > before {
			if backend.statusCalls != 3 || s.Job().State != StateCompleted {
				t.Fatalf("report fetched after %d statuses in state %s", backend.statusCalls, s.Job().State)
			}
		}
		cmd = s.Update(msg)
		if backend.statusCalls != lastStatusCalls {
			lastStatusCalls = backend.statusCalls
			job := s.Job()
			progress = append(progress, seen{job.Stage, job.Progress})
		}
	}

	want := []seen{{pulse.StageCollecting, 10}, {pulse.StageGenerating, 55}, {pulse.StageNone, 100}}
	if !reflect.DeepEqual(progress, want) {
		t.Fatalf("unexpected progress %v, want %v", progress, want)
	}
	if backend.statusCalls != 3 || backend.reportCalls != 1 {
		t.Fatalf("expected 3 status polls and 1 report fetch, got %d and %d", backend.statusCalls, backend.reportCalls)
	}
	if _, ok := s.Results().Report(); !ok || s.Job().State != StateCompleted {
		t.Fatalf("expected completed job with report, job=%+v", s.Job())
	}
}

func TestSessionNoiseOrdinanceQuotes(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	s := completedSession(t, backend)
	results := s.Results()

	cmd := results.FetchQuotesForSubtopic("Noise Ordinance")
	if cmd == nil {
		t.Fatal("first expansion must fetch quotes")
	}
	if again := results.FetchQuotesForSubtopic("Noise Ordinance"); again != nil {
		t.Fatal("expansion while loading must not fetch again")
	}
	drain(t, s.Update, cmd)

	p := results.Subtopic("Noise Ordinance")
	if p.Index() != 3 || p.Total() != 7 {
		t.Fatalf("expected window 3 of 7, got %d of %d", p.Index(), p.Total())
	}
	p.ShowMore()
	if p.Index() != 7 {
		t.Fatalf("expected window 7 after show more, got %d", p.Index())
	}
	p.ShowLess()
	p.ShowMore()
	results.CollapseSubtopic("Noise Ordinance")
	if p.Expanded() {
		t.Fatal("expected subtopic collapsed")
	}
	if cmd := results.FetchQuotesForSubtopic("Noise Ordinance"); cmd != nil {
		t.Fatal("re-expansion must use the cache")
	}
	if p.Index() != 7 || !p.Expanded() {
		t.Fatalf("expected window kept at 7 and expanded, got %d expanded=%v", p.Index(), p.Expanded())
	}
	if got := backend.quoteCalls["Noise Ordinance"]; got != 1 {
		t.Fatalf("expected one quote request, got %d", got)
	}
}

func TestSessionQuoteFailureIsScoped(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	backend.quoteErrs = map[string][]error{"Enforcement": {pulse.ErrNetwork}}
	s := completedSession(t, backend)
	results := s.Results()

	drain(t, s.Update, results.FetchQuotesForSubtopic("Enforcement"))
	drain(t, s.Update, results.FetchQuotesForSubtopic("Nightlife"))

	var loadErr *SubtopicLoadError
	if !errors.As(results.Subtopic("Enforcement").Err(), &loadErr) {
		t.Fatalf("expected scoped load error, got %v", results.Subtopic("Enforcement").Err())
	}
	if got := results.Subtopic("Nightlife"); !got.Loaded() || got.Err() != nil {
		t.Fatal("sibling subtopic must load independently")
	}

	results.CollapseSubtopic("Enforcement")
	drain(t, s.Update, results.FetchQuotesForSubtopic("Enforcement"))
	if p := results.Subtopic("Enforcement"); !p.Loaded() || p.Index() != 3 {
		t.Fatalf("expected retry to load quotes, loaded=%v index=%d", p.Loaded(), p.Index())
	}
}

func TestSessionSelectionAndAggregate(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	backend.agg = pulse.Aggregate{
		TotalQuotes: 5,
		QuotesByTheme: map[string][]pulse.Quote{
			"Enforcement":     makeQuotes(2),
			"Noise Ordinance": makeQuotes(3),
		},
		Themes: []string{"Enforcement", "Noise Ordinance"},
	}
	s := completedSession(t, backend)
	sel := s.Selection()

	if sel.Visible() {
		t.Fatal("aggregate action must be hidden with nothing selected")
	}
	if _, err := s.RequestAggregatedQuotes(); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if err := s.Toggle("Zoning"); !errors.Is(err, ErrUnknownTheme) {
		t.Fatalf("expected ErrUnknownTheme, got %v", err)
	}
	for _, name := range []string{"Noise Ordinance", "Enforcement", "Nightlife", "Nightlife"} {
		if err := s.Toggle(name); err != nil {
			t.Fatalf("Toggle(%q) returned error: %v", name, err)
		}
	}
	if got := sel.Label(); got != "Show Quotes for Selected Themes (2)" {
		t.Fatalf("unexpected label %q", got)
	}

	cmd, err := s.RequestAggregatedQuotes()
	if err != nil {
		t.Fatalf("RequestAggregatedQuotes returned error: %v", err)
	}
	if _, err := s.RequestAggregatedQuotes(); !errors.Is(err, ErrAggregatePending) {
		t.Fatalf("expected ErrAggregatePending, got %v", err)
	}
	drain(t, s.Update, cmd)
	if sel.Pending() {
		t.Fatal("pending flag must clear once the aggregate resolves")
	}
	want := []string{"Enforcement", "Noise Ordinance"}
	if len(backend.aggCalls) != 1 || !reflect.DeepEqual(backend.aggCalls[0], want) {
		t.Fatalf("expected one request for %v, got %v", want, backend.aggCalls)
	}
	agg, ok := s.Results().Aggregate()
	if !ok || agg.TotalQuotes != 5 {
		t.Fatalf("expected aggregate with 5 quotes, got %+v ok=%v", agg, ok)
	}

	backend.aggErr = pulse.ErrPartialAggregate
	cmd, err = s.RequestAggregatedQuotes()
	if err != nil {
		t.Fatalf("second request returned error: %v", err)
	}
	drain(t, s.Update, cmd)
	if !errors.Is(s.Results().AggregateErr(), pulse.ErrPartialAggregate) {
		t.Fatalf("expected partial aggregate error, got %v", s.Results().AggregateErr())
	}
	if agg, _ := s.Results().Aggregate(); agg.TotalQuotes != 5 {
		t.Fatal("failed aggregate must keep the previous result")
	}
	if sel.Pending() {
		t.Fatal("pending flag must clear after a failure")
	}
}

func TestSessionRestartInvalidatesResults(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	s := completedSession(t, backend)
	if err := s.Toggle("Nightlife"); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	staleQuotes := s.Results().FetchQuotesForSubtopic("Nightlife")

	if _, err := s.Start(pulse.JobRequest{Community: "nyc", Theme: "Parking"}); err != nil {
		t.Fatalf("restart returned error: %v", err)
	}
	if _, ok := s.Results().Report(); ok {
		t.Fatal("restart must drop the cached report")
	}
	if s.Selection().Count() != 0 {
		t.Fatal("restart must clear the selection")
	}
	s.Update(staleQuotes())
	if s.Results().Subtopic("Nightlife") != nil {
		t.Fatal("stale quotes must not recreate subtopics")
	}
	if _, err := s.Export(); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport after restart, got %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	t.Parallel()
	backend := newReportBackend(t)
	s := completedSession(t, backend)

	artifact, err := s.Export()
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if artifact.Filename != "Noise_Complaints_Report.json" {
		t.Fatalf("unexpected filename %q", artifact.Filename)
	}
	if !bytes.Contains(artifact.Data, []byte("\n  \"totalPosts\": 42")) {
		t.Fatalf("expected indented export, got:\n%s", artifact.Data)
	}
	var got, want any
	if err := json.Unmarshal(artifact.Data, &got); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if err := json.Unmarshal([]byte(sampleReport), &want); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("export differs from backend report:\n%s", artifact.Data)
	}

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := WriteArtifact(dir, artifact)
	if err != nil {
		t.Fatalf("WriteArtifact returned error: %v", err)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.Equal(written, artifact.Data) {
		t.Fatal("written file differs from artifact")
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatal("temporary file must not survive")
	}
}

func TestExportFilename(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"Noise Complaints":    "Noise_Complaints_Report.json",
		"Parks/Rec":           "Parks-Rec_Report.json",
		"Rent\tControl  Laws": "Rent_Control__Laws_Report.json",
	}
	for title, want := range tests {
		if got := ExportFilename(title); got != want {
			t.Fatalf("ExportFilename(%q) = %q, want %q", title, got, want)
		}
	}
}
