package main

import (
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/csheth/policypulse/internal/config"
	"github.com/csheth/policypulse/internal/logging"
	"github.com/csheth/policypulse/internal/pulse"
	"github.com/csheth/policypulse/internal/tui"
)

type rootFlags struct {
	configPath   string
	backend      string
	pollInterval time.Duration
	exportDir    string
	logLevel     string
	logFile      string
	noAltScreen  bool
}

// app is everything a command needs once config has been resolved.
type app struct {
	cfg    config.Config
	logger *logging.Logger
	client *pulse.Client
}

func (r *app) Close() error {
	return r.logger.Close()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "policypulse",
		Short:         "Explore what online communities say about local policy",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runTUI(cmd, rt, flags.noAltScreen)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/policypulse/config.yaml)")
	pf.StringVar(&flags.backend, "backend", "", "analysis backend URL")
	pf.DurationVar(&flags.pollInterval, "poll-interval", 0, "delay between job status polls")
	pf.StringVar(&flags.exportDir, "export-dir", "", "directory for exported reports")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.logFile, "log-file", "", "log file (default ~/.policypulse/logs/policypulse-<date>.log)")
	root.Flags().BoolVar(&flags.noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")

	root.AddCommand(newRunCmd(flags), newVersionCmd(), newConfigCmd(flags))
	return root
}

// setup resolves config, opens the log file and builds the backend client.
// Flags win over the file and the environment only when set explicitly.
func setup(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	set := cmd.Flags()
	if set.Changed("backend") {
		cfg.Backend.URL = flags.backend
	}
	if set.Changed("poll-interval") {
		cfg.PollInterval = flags.pollInterval
	}
	if set.Changed("export-dir") {
		cfg.ExportDir = flags.exportDir
	}
	if set.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if set.Changed("log-file") {
		cfg.Log.File = flags.logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	logger, err := logging.Open(cfg.Log.File, level)
	if err != nil {
		return nil, err
	}
	logger.Info("starting", "version", version, "backend", cfg.Backend.URL, "config", cfg.Source)

	client, err := pulse.New(pulse.Options{
		BaseURL:           cfg.Backend.URL,
		HTTPClient:        &http.Client{Timeout: cfg.Backend.Timeout},
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Logger:            logger.WithPrefix("pulse"),
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, client: client}, nil
}

func runTUI(cmd *cobra.Command, rt *app, noAltScreen bool) error {
	opts := []tea.ProgramOption{tea.WithContext(cmd.Context()), tea.WithMouseCellMotion()}
	if !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(tui.Config{
		Backend:        rt.client,
		ExportDir:      rt.cfg.ExportDir,
		PollInterval:   rt.cfg.PollInterval,
		RequestTimeout: rt.cfg.Backend.Timeout,
		Logger:         rt.logger.Logger,
	}), opts...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the policypulse version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "policypulse", version)
		},
	}
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the policypulse config file",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})
	return configCmd
}
