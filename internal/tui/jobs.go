package tui

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

type jobKind string

type jobStatus string

const (
	jobKindRelated jobKind = "related"
	jobKindThemes  jobKind = "themes"
	jobKindExport  jobKind = "export"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs the short request/response jobs of the discovery screens. The
// analysis job itself is owned by explore.Controller.
type jobBus struct {
	counter int64
	log     *log.Logger
	active  map[string]jobSnapshot
	last    *jobSnapshot
}

func newJobBus(logger *log.Logger) *jobBus {
	return &jobBus{log: logger.WithPrefix("jobs"), active: map[string]jobSnapshot{}}
}

func (b *jobBus) nextID(kind jobKind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	id := b.nextID(kind)
	started := time.Now()
	startSnapshot := jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return jobSignalMsg{Snapshot: startSnapshot}
	}

	logger := b.log
	runCmd := func() tea.Msg {
		payload, err := runner(context.Background())
		snapshot := jobSnapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
		if err != nil {
			snapshot.Status = jobStatusFailed
			snapshot.Err = err.Error()
		} else {
			snapshot.Status = jobStatusSucceeded
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)
		logger.Debug("job finished", "id", id, "status", snapshot.Status, "duration", snapshot.Duration, "err", err)
		return jobResultEnvelope{Snapshot: snapshot, Payload: payload}
	}

	return tea.Sequence(startCmd, runCmd)
}

// Track records a lifecycle snapshot for the status bar.
func (b *jobBus) Track(snapshot jobSnapshot) {
	if snapshot.Status == jobStatusRunning {
		b.active[snapshot.ID] = snapshot
		return
	}
	delete(b.active, snapshot.ID)
	last := snapshot
	b.last = &last
}

// Badges lists running jobs, then the last finished one.
func (b *jobBus) Badges() []string {
	kinds := make([]string, 0, len(b.active))
	for _, snap := range b.active {
		kinds = append(kinds, string(snap.Kind))
	}
	sort.Strings(kinds)
	badges := make([]string, 0, len(kinds)+1)
	for _, kind := range kinds {
		badges = append(badges, kind+" …")
	}
	if b.last != nil && len(b.active) == 0 {
		switch b.last.Status {
		case jobStatusFailed:
			badges = append(badges, fmt.Sprintf("%s failed", b.last.Kind))
		default:
			badges = append(badges, fmt.Sprintf("%s %s", b.last.Kind, b.last.Duration.Round(time.Millisecond)))
		}
	}
	return badges
}
