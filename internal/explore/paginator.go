package explore

import "github.com/csheth/policypulse/internal/pulse"

const (
	initialWindow = 3
	windowStep    = 5
)

// Paginator windows the quotes of one subtopic. Quotes are fetched on first
// expansion and cached for the lifetime of the report.
type Paginator struct {
	name     string
	quotes   []pulse.Quote
	loaded   bool
	loading  bool
	expanded bool
	index    int
	err      error
}

func newPaginator(name string) *Paginator {
	return &Paginator{name: name}
}

// Name is the subtopic this paginator belongs to.
func (p *Paginator) Name() string { return p.name }

// Expanded reports whether the subtopic is currently open.
func (p *Paginator) Expanded() bool { return p.expanded }

// Loaded reports whether quotes have been fetched successfully.
func (p *Paginator) Loaded() bool { return p.loaded }

// Loading reports whether a fetch is in flight.
func (p *Paginator) Loading() bool { return p.loading }

// Err is the last load failure, if any.
func (p *Paginator) Err() error { return p.err }

// Total is the number of cached quotes.
func (p *Paginator) Total() int { return len(p.quotes) }

// Index is the end of the visible window.
func (p *Paginator) Index() int { return p.index }

// expand opens the subtopic and reports whether a fetch must be issued.
func (p *Paginator) expand() bool {
	p.expanded = true
	if p.loaded || p.loading {
		return false
	}
	p.loading = true
	p.err = nil
	return true
}

// Collapse hides the subtopic. The window and cache are kept.
func (p *Paginator) Collapse() {
	p.expanded = false
}

func (p *Paginator) finishLoad(quotes []pulse.Quote, err error) {
	p.loading = false
	if err != nil {
		p.err = &SubtopicLoadError{Subtopic: p.name, Err: err}
		return
	}
	p.quotes = quotes
	p.loaded = true
	p.err = nil
	p.index = min(initialWindow, len(quotes))
}

func (p *Paginator) floor() int {
	return min(initialWindow, len(p.quotes))
}

// CanShowMore reports whether ShowMore would grow the window.
func (p *Paginator) CanShowMore() bool {
	return p.loaded && p.index < len(p.quotes)
}

// CanShowLess reports whether ShowLess would shrink the window.
func (p *Paginator) CanShowLess() bool {
	return p.loaded && p.index > p.floor()
}

// ShowMore grows the window by five, clamped to the total.
func (p *Paginator) ShowMore() bool {
	if !p.CanShowMore() {
		return false
	}
	p.index = min(p.index+windowStep, len(p.quotes))
	return true
}

// ShowLess shrinks the window by five, never below the initial three.
func (p *Paginator) ShowLess() bool {
	if !p.CanShowLess() {
		return false
	}
	p.index = max(p.index-windowStep, p.floor())
	return true
}

// Visible returns the quotes inside the window.
func (p *Paginator) Visible() []pulse.Quote {
	if !p.loaded {
		return nil
	}
	return p.quotes[:p.index:p.index]
}
