package tui

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/csheth/policypulse/internal/explore"
)

func TestJobBusBadges(t *testing.T) {
	bus := newJobBus(log.New(os.Stderr))
	running := jobSnapshot{ID: "themes-1", Kind: jobKindThemes, Status: jobStatusRunning}
	bus.Track(running)
	if got := bus.Badges(); len(got) != 1 || got[0] != "themes …" {
		t.Fatalf("unexpected running badges %v", got)
	}

	done := running
	done.Status = jobStatusFailed
	done.Err = "timeout"
	bus.Track(done)
	if got := bus.Badges(); len(got) != 1 || got[0] != "themes failed" {
		t.Fatalf("unexpected finished badges %v", got)
	}

	if id := bus.nextID(jobKindExport); !strings.HasPrefix(id, "export-") {
		t.Fatalf("unexpected job id %q", id)
	}
}

func TestRelatedCommunitiesJob(t *testing.T) {
	backend := newFakeBackend()
	payload, err := relatedCommunitiesJob(backend, "noise")(context.Background())
	if err != nil {
		t.Fatalf("job returned error: %v", err)
	}
	msg, ok := payload.(relatedResultMsg)
	if !ok || msg.topic != "noise" || len(msg.communities) != 2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestExportJobReportsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := dir + "/file"
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	payload, err := exportJob(blocker, explore.Artifact{Filename: "a.json", Data: []byte("{}")})(context.Background())
	if err == nil {
		t.Fatal("expected error when export dir is a file")
	}
	msg := payload.(exportResultMsg)
	if !errors.Is(msg.err, err) {
		t.Fatalf("payload error %v does not match %v", msg.err, err)
	}
}
