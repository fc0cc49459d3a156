package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/logging"
	"github.com/csheth/policypulse/internal/pulse"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var req pulse.JobRequest
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse a theme without the TUI and export the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(req.Community) == "" || strings.TrimSpace(req.Theme) == "" {
				return errors.New("--community and --theme are required")
			}
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			level, _ := rt.cfg.Level()
			progress := logging.New(cmd.ErrOrStderr(), level).WithPrefix("run")
			path, err := runHeadless(cmd.Context(), cmd.ErrOrStderr(), rt.client, req, headlessOptions{
				ExportDir: rt.cfg.ExportDir,
				Session: explore.Options{
					PollInterval:   rt.cfg.PollInterval,
					RequestTimeout: rt.cfg.Backend.Timeout,
					Logger:         rt.logger.Logger,
				},
				Progress: progress,
			})
			if err != nil {
				rt.logger.Error("headless run failed", "err", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Community, "community", "", "community to analyse, with or without the r/ prefix")
	cmd.Flags().StringVar(&req.Theme, "theme", "", "theme title to analyse")
	return cmd
}

type headlessOptions struct {
	ExportDir string
	Session   explore.Options
	Progress  *log.Logger
}

// runHeadless drives one job to completion on a renderer-less program and
// returns the path of the written export.
func runHeadless(ctx context.Context, out io.Writer, backend explore.Backend, req pulse.JobRequest, opts headlessOptions) (string, error) {
	runner := newHeadless(backend, opts)
	start, err := runner.session.Start(req)
	if err != nil {
		return "", err
	}
	runner.start = start
	runner.progress.Info("job requested", "community", runner.session.Request().Community, "theme", req.Theme)

	program := tea.NewProgram(runner,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(out),
		tea.WithoutRenderer(),
	)
	if _, err := program.Run(); err != nil {
		runner.session.Teardown()
		return "", err
	}
	if runner.err != nil {
		return "", runner.err
	}
	return runner.path, nil
}

type headless struct {
	session   *explore.Session
	exportDir string
	progress  *log.Logger
	start     tea.Cmd

	stage    pulse.Stage
	percent  int
	reported bool
	path     string
	err      error
}

func newHeadless(backend explore.Backend, opts headlessOptions) *headless {
	progress := opts.Progress
	if progress == nil {
		progress = logging.Discard()
	}
	return &headless{
		session:   explore.NewSession(backend, opts.Session),
		exportDir: opts.ExportDir,
		progress:  progress,
		percent:   -1,
	}
}

func (h *headless) Init() tea.Cmd { return h.start }

func (h *headless) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !explore.Owns(msg) {
		return h, nil
	}
	cmd := h.session.Update(msg)
	if done := h.observe(); done {
		return h, tea.Quit
	}
	return h, cmd
}

func (h *headless) View() string { return "" }

// observe logs progress changes and reports whether the run is over.
func (h *headless) observe() bool {
	job := h.session.Job()
	if job.State == explore.StateRunning && (job.Stage != h.stage || job.Progress != h.percent) {
		h.stage, h.percent = job.Stage, job.Progress
		h.progress.Info("progress", "stage", job.Stage, "progress", job.Progress)
	}
	switch job.State {
	case explore.StateIdle:
		// A rejected create leaves the job Idle with the error attached.
		if job.Err != nil {
			h.err = job.Err
			return true
		}
	case explore.StateFailed:
		h.err = job.Err
		return true
	case explore.StateCompleted:
		if !h.reported {
			h.reported = true
			h.progress.Info("job complete, fetching report")
		}
		results := h.session.Results()
		if err := results.ReportErr(); err != nil {
			h.err = err
			return true
		}
		if _, ok := results.Report(); !ok {
			return false
		}
		artifact, err := h.session.Export()
		if err != nil {
			h.err = err
			return true
		}
		path, err := explore.WriteArtifact(h.exportDir, artifact)
		if err != nil {
			h.err = err
			return true
		}
		h.path = path
		h.progress.Info("report exported", "path", path, "subtopics", len(results.Subtopics()))
		return true
	}
	return false
}
