package tui

import (
	"context"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/pulse"
)

type stage int

const (
	stageSearch stage = iota
	stageCommunities
	stageThemes
	stageAnalysing
	stageReport
)

func (s stage) String() string {
	switch s {
	case stageCommunities:
		return "Communities"
	case stageThemes:
		return "Themes"
	case stageAnalysing:
		return "Analysing"
	case stageReport:
		return "Report"
	default:
		return "Search"
	}
}

const heroTagline = "Hear what communities say about local policy."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	quoteIndent               = 6
)

const (
	blankSearchMessage  = "Please enter a search term!"
	alreadyRunningText  = "An analysis is already running. Wait for it to finish or press Esc to cancel it."
	searchPlaceholder   = "Search a topic, e.g. noise complaints in new york"
	noticeDismissHint   = "Press any key to continue."
	stageCollectingText = "Collecting Reddit data…"
	stageGeneratingText = "Generating themes…"
	stageStartingText   = "Starting analysis…"
)

// Backend is the analysis API plus the discovery endpoints used before a
// job starts.
type Backend interface {
	explore.Backend
	RelatedCommunities(ctx context.Context, topic string) ([]string, error)
	Themes(ctx context.Context, community string) ([]pulse.Theme, error)
}
