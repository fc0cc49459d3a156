package explore

import (
	"fmt"
	"sort"
)

// Selection tracks which report themes are chosen for aggregation.
type Selection struct {
	valid   map[string]bool
	members map[string]bool
	pending bool
}

// NewSelection returns an empty selection with no valid names.
func NewSelection() *Selection {
	return &Selection{valid: map[string]bool{}, members: map[string]bool{}}
}

// Reset replaces the set of selectable names and clears the selection.
func (s *Selection) Reset(names []string) {
	s.valid = make(map[string]bool, len(names))
	for _, name := range names {
		s.valid[name] = true
	}
	s.members = map[string]bool{}
	s.pending = false
}

// Toggle flips membership of name.
func (s *Selection) Toggle(name string) error {
	if !s.valid[name] {
		return fmt.Errorf("toggle %q: %w", name, ErrUnknownTheme)
	}
	if s.members[name] {
		delete(s.members, name)
	} else {
		s.members[name] = true
	}
	return nil
}

// Selected reports whether name is chosen.
func (s *Selection) Selected(name string) bool {
	return s.members[name]
}

func (s *Selection) Count() int {
	return len(s.members)
}

// Visible reports whether the aggregate action should be offered.
func (s *Selection) Visible() bool {
	return len(s.members) > 0
}

func (s *Selection) Label() string {
	return fmt.Sprintf("Show Quotes for Selected Themes (%d)", len(s.members))
}

// Pending reports whether an aggregation is unresolved.
func (s *Selection) Pending() bool {
	return s.pending
}

// Members returns the chosen names in sorted order.
func (s *Selection) Members() []string {
	names := make([]string, 0, len(s.members))
	for name := range s.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// begin snapshots the members for an aggregation request.
func (s *Selection) begin() ([]string, error) {
	if len(s.members) == 0 {
		return nil, fmt.Errorf("aggregate: %w", ErrEmptyInput)
	}
	if s.pending {
		return nil, ErrAggregatePending
	}
	s.pending = true
	return s.Members(), nil
}

func (s *Selection) resolve() {
	s.pending = false
}
