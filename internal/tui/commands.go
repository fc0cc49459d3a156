package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/policypulse/internal/explore"
	"github.com/csheth/policypulse/internal/pulse"
)

const discoveryTimeout = 30 * time.Second

type relatedResultMsg struct {
	topic       string
	communities []string
	err         error
}

type themesResultMsg struct {
	community string
	themes    []pulse.Theme
	err       error
}

type exportResultMsg struct {
	path string
	err  error
}

func relatedCommunitiesJob(backend Backend, topic string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, discoveryTimeout)
		defer cancel()
		communities, err := backend.RelatedCommunities(ctx, topic)
		return relatedResultMsg{topic: topic, communities: communities, err: err}, err
	}
}

func themesJob(backend Backend, community string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, discoveryTimeout)
		defer cancel()
		themes, err := backend.Themes(ctx, community)
		return themesResultMsg{community: community, themes: themes, err: err}, err
	}
}

func exportJob(dir string, artifact explore.Artifact) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		path, err := explore.WriteArtifact(dir, artifact)
		return exportResultMsg{path: path, err: err}, err
	}
}
