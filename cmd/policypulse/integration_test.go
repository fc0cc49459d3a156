package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/csheth/policypulse/internal/tuitest"
)

func TestPolicyPulseSearchToExport(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and drives the binary")
	}
	backend := &fakeAnalysisBackend{}
	server := newFakeAnalysisServer(t, backend)

	cmdDir := moduleDir(t)
	binary := buildBinary(t, cmdDir)
	home := t.TempDir()
	exportDir := filepath.Join(home, "exports")

	rec, err := tuitest.Run(context.Background(), tuitest.Config{
		Command: []string{
			binary, "--no-alt-screen",
			"--backend", server.URL,
			"--poll-interval", "50ms",
			"--export-dir", exportDir,
			"--log-file", filepath.Join(home, "policypulse.log"),
		},
		Dir:    home,
		Env:    []string{"HOME=" + home, "POLICYPULSE_CONFIG="},
		Width:  120,
		Height: 40,
		Steps: []tuitest.Step{
			{WaitFor: "Search a topic", Input: []byte("noise")},
			{Delay: 100 * time.Millisecond, Input: tuitest.KeyEnter},
			{WaitFor: "Pick a community to explore.", Input: tuitest.KeyEnter},
			{WaitFor: "Pick a theme to analyse.", Input: tuitest.KeyEnter},
			{WaitFor: "Noise Ordinance", Input: []byte("e")},
			{WaitFor: "Report exported to", Input: tuitest.KeyCtrlC},
		},
		Timeout:        15 * time.Second,
		AllowInterrupt: true,
	})
	if err != nil {
		t.Fatalf("run CLI: %v", err)
	}
	if !rec.Contains("Enforcement") {
		t.Fatalf("report subtopics never rendered")
	}

	data, err := os.ReadFile(filepath.Join(exportDir, "Noise_Complaints_Report.json"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), `"Noise Ordinance"`) {
		t.Fatalf("unexpected export:\n%s", data)
	}
	reqs := backend.requests()
	if len(reqs) != 1 || reqs[0]["subreddit"] != "nyc" {
		t.Fatalf("unexpected job requests %v", reqs)
	}
}

func moduleDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Dir(file)
}

func buildBinary(t *testing.T, cmdDir string) string {
	t.Helper()
	name := "policypulse-integration"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	binPath := filepath.Join(t.TempDir(), name)
	cmd := exec.Command("go", "build", "-o", binPath, ".")
	cmd.Dir = cmdDir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build CLI: %v\n%s", err, output)
	}
	return binPath
}
