package explore

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/csheth/policypulse/internal/pulse"
)

const (
	// DefaultPollInterval is the delay between a status response and the next poll.
	DefaultPollInterval   = 2 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// State is the lifecycle position of the analysis job.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Active reports whether the job still owns the backend.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Settled reports whether the job reached a terminal state.
func (s State) Settled() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is a snapshot of the single analysis job.
type Job struct {
	State      State
	Stage      pulse.Stage
	Progress   int
	Err        error
	Generation int
}

// JobBackend starts and observes backend jobs.
type JobBackend interface {
	CreateJob(ctx context.Context, req pulse.JobRequest) error
	JobStatus(ctx context.Context) (pulse.JobStatus, error)
}

type jobCreatedMsg struct {
	generation int
	err        error
}

type pollTickMsg struct {
	generation int
}

type jobStatusMsg struct {
	generation int
	status     pulse.JobStatus
	err        error
}

// pollTask is the cancellable poll loop bound to one generation.
type pollTask struct {
	generation int
	ctx        context.Context
	cancel     context.CancelFunc
	inFlight   bool
}

// Controller owns the analysis job: start, poll, terminate. It must only be
// driven from the program's update loop.
type Controller struct {
	backend    JobBackend
	interval   time.Duration
	timeout    time.Duration
	log        *log.Logger
	job        Job
	task       *pollTask
	onComplete func(generation int) tea.Cmd
}

// ControllerOptions tunes a Controller. Zero values select defaults.
type ControllerOptions struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *log.Logger
	// OnComplete runs once per generation when the job completes.
	OnComplete func(generation int) tea.Cmd
}

// NewController returns an idle Controller.
func NewController(backend JobBackend, opts ControllerOptions) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{
		backend:    backend,
		interval:   interval,
		timeout:    timeout,
		log:        logger.WithPrefix("jobs"),
		onComplete: opts.OnComplete,
	}
}

// Job returns the current job snapshot.
func (c *Controller) Job() Job {
	return c.job
}

// Start begins a new job. It fails with ErrAlreadyRunning, without issuing a
// request or touching the current job, while another job is starting or running.
func (c *Controller) Start(req pulse.JobRequest) (tea.Cmd, error) {
	if c.job.State.Active() {
		c.log.Warn("start rejected", "generation", c.job.Generation, "state", c.job.State)
		return nil, ErrAlreadyRunning
	}
	c.stopTask()
	generation := c.job.Generation + 1
	c.job = Job{State: StateStarting, Generation: generation}
	ctx, cancel := context.WithCancel(context.Background())
	c.task = &pollTask{generation: generation, ctx: ctx, cancel: cancel}
	c.log.Info("starting job", "generation", generation, "community", req.Community, "theme", req.Theme)

	backend := c.backend
	timeout := c.timeout
	return func() tea.Msg {
		reqCtx, done := context.WithTimeout(ctx, timeout)
		defer done()
		return jobCreatedMsg{generation: generation, err: backend.CreateJob(reqCtx, req)}
	}, nil
}

// Teardown cancels the poll loop. Responses that arrive later are dropped.
func (c *Controller) Teardown() {
	if c.task != nil {
		c.log.Info("tearing down poll loop", "generation", c.task.generation)
		c.stopTask()
	}
	if c.job.State.Active() {
		c.job.State = StateIdle
		c.job.Stage = pulse.StageNone
	}
}

// Dismiss returns a settled job to Idle. It reports whether anything changed.
// A Failed job is already ready for a new attempt: Start accepts it without
// a Dismiss, which only clears the error for display.
func (c *Controller) Dismiss() bool {
	if !c.job.State.Settled() {
		return false
	}
	c.job.State = StateIdle
	c.job.Err = nil
	return true
}

// Update applies job messages. Messages for any generation other than the
// live one are discarded.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case jobCreatedMsg:
		return c.handleCreated(msg)
	case pollTickMsg:
		return c.handleTick(msg)
	case jobStatusMsg:
		return c.handleStatus(msg)
	}
	return nil
}

func (c *Controller) current(generation int) bool {
	return c.task != nil && c.task.generation == generation && c.job.Generation == generation
}

func (c *Controller) handleCreated(msg jobCreatedMsg) tea.Cmd {
	if !c.current(msg.generation) {
		c.log.Debug("dropping stale create response", "generation", msg.generation)
		return nil
	}
	if msg.err != nil {
		c.log.Error("job creation failed", "generation", msg.generation, "err", msg.err)
		c.stopTask()
		c.job.State = StateIdle
		c.job.Err = msg.err
		return nil
	}
	c.job.State = StateRunning
	c.job.Stage = pulse.StageNone
	c.job.Progress = 0
	return c.schedulePoll(msg.generation)
}

func (c *Controller) schedulePoll(generation int) tea.Cmd {
	return tea.Tick(c.interval, func(time.Time) tea.Msg {
		return pollTickMsg{generation: generation}
	})
}

func (c *Controller) handleTick(msg pollTickMsg) tea.Cmd {
	if !c.current(msg.generation) || c.job.State != StateRunning {
		return nil
	}
	if c.task.inFlight {
		return nil
	}
	c.task.inFlight = true
	ctx := c.task.ctx
	backend := c.backend
	timeout := c.timeout
	generation := msg.generation
	return func() tea.Msg {
		reqCtx, done := context.WithTimeout(ctx, timeout)
		defer done()
		status, err := backend.JobStatus(reqCtx)
		return jobStatusMsg{generation: generation, status: status, err: err}
	}
}

func (c *Controller) handleStatus(msg jobStatusMsg) tea.Cmd {
	if !c.current(msg.generation) {
		c.log.Debug("dropping stale status", "generation", msg.generation)
		return nil
	}
	c.task.inFlight = false
	if msg.err != nil {
		c.fail(msg.err)
		return nil
	}
	status := msg.status
	if status.Running {
		c.advance(status)
		return c.schedulePoll(msg.generation)
	}
	c.stopTask()
	if status.Error != "" {
		c.fail(fmt.Errorf("%w: %s", ErrJobFailed, status.Error))
		return nil
	}
	c.job.State = StateCompleted
	c.job.Stage = pulse.StageNone
	c.job.Progress = 100
	c.log.Info("job completed", "generation", msg.generation)
	if c.onComplete != nil {
		return c.onComplete(msg.generation)
	}
	return nil
}

// advance applies a running status. Updates that would move stage or progress
// backwards are discarded whole.
func (c *Controller) advance(status pulse.JobStatus) {
	stage := status.Stage
	if stage == pulse.StageNone {
		stage = c.job.Stage
	}
	progress := c.job.Progress
	if status.Progress != nil {
		progress = *status.Progress
	}
	if stage < c.job.Stage || progress < c.job.Progress {
		c.log.Debug("discarding out-of-order status",
			"generation", c.job.Generation,
			"stage", status.Stage,
			"progress", progress,
			"current", c.job.Progress)
		return
	}
	if stage != c.job.Stage || progress != c.job.Progress {
		c.log.Debug("job progress", "generation", c.job.Generation, "stage", stage, "progress", progress)
	}
	c.job.Stage = stage
	c.job.Progress = progress
}

func (c *Controller) fail(err error) {
	c.log.Error("job failed", "generation", c.job.Generation, "err", err)
	c.stopTask()
	c.job.State = StateFailed
	c.job.Err = err
}

func (c *Controller) stopTask() {
	if c.task == nil {
		return
	}
	c.task.cancel()
	c.task = nil
}
