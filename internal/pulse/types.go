package pulse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Percentage is a display value as produced by the backend. It is not
// guaranteed to be numeric ("12/40" and "30%" both occur).
type Percentage string

// UnmarshalJSON accepts both strings and bare numbers.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Percentage(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Percentage(n.String() + "%")
	return nil
}

func (p Percentage) String() string {
	return string(p)
}

// Theme is a top-level discourse cluster suggested for a community.
type Theme struct {
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Percentage  Percentage `json:"percentage,omitempty"`
}

// UnmarshalJSON fills Name and Title from each other when only one is sent.
func (t *Theme) UnmarshalJSON(data []byte) error {
	type plain Theme
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Theme(raw)
	t.Name = strings.TrimSpace(t.Name)
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		t.Title = t.Name
	}
	if t.Name == "" {
		t.Name = t.Title
	}
	t.Description = strings.TrimSpace(t.Description)
	return nil
}

// Code is a subtopic inside a generated report.
type Code struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Percentage  Percentage `json:"percentage"`
}

// Report is the analysis produced by a completed job.
type Report struct {
	TotalPosts *int   `json:"totalPosts,omitempty"`
	Codes      []Code `json:"codes"`
}

// Names lists the report's subtopic names in order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Codes))
	for _, code := range r.Codes {
		names = append(names, code.Name)
	}
	return names
}

// Quote is a single sourced excerpt. Codes and Themes are only populated in
// aggregated results.
type Quote struct {
	Text      string   `json:"text"`
	Summary   string   `json:"summary,omitempty"`
	Subreddit string   `json:"subreddit,omitempty"`
	Score     int      `json:"score"`
	Codes     []string `json:"codes,omitempty"`
	Themes    []string `json:"themes,omitempty"`
}

// UnmarshalJSON accepts raw categorized records, which carry the excerpt
// under "quote", the origin under "source_id" and codes as {"code_name"}
// objects.
func (q *Quote) UnmarshalJSON(data []byte) error {
	type plain Quote
	var raw struct {
		plain
		Quote    string      `json:"quote"`
		SourceID string      `json:"source_id"`
		Codes    []codeEntry `json:"codes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Quote(raw.plain)
	if q.Text == "" {
		q.Text = raw.Quote
	}
	if q.Subreddit == "" {
		q.Subreddit = strings.TrimSpace(raw.SourceID)
	}
	q.Codes = nil
	for _, code := range raw.Codes {
		if code != "" {
			q.Codes = append(q.Codes, string(code))
		}
	}
	return nil
}

// codeEntry is a code given either as a bare name or as {"code_name": ...}.
type codeEntry string

func (c *codeEntry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = codeEntry(strings.TrimSpace(name))
		return nil
	}
	var obj struct {
		CodeName string `json:"code_name"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.CodeName == "" {
		obj.CodeName = obj.Name
	}
	*c = codeEntry(strings.TrimSpace(obj.CodeName))
	return nil
}

// Stage is the coarse phase a running job reports.
type Stage int

const (
	StageNone Stage = iota
	StageCollecting
	StageGenerating
)

// ParseStage maps the backend's stage names onto Stage.
func ParseStage(value string) Stage {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "reddit_quotes", "collecting":
		return StageCollecting
	case "subtopics", "generating":
		return StageGenerating
	default:
		return StageNone
	}
}

func (s Stage) String() string {
	switch s {
	case StageCollecting:
		return "collecting"
	case StageGenerating:
		return "generating"
	default:
		return "none"
	}
}

// JobRequest describes the analysis to start. Both fields are optional.
type JobRequest struct {
	Community string `json:"subreddit,omitempty"`
	Theme     string `json:"theme,omitempty"`
}

// JobStatus is one poll response.
type JobStatus struct {
	Running  bool
	Stage    Stage
	Progress *int
	Error    string
}

// Aggregate groups quotes for several selected themes.
type Aggregate struct {
	TotalQuotes   int
	QuotesByTheme map[string][]Quote
	Themes        []string
	Codes         []string
}

// NormalizeCommunity trims whitespace and a leading "r/".
func NormalizeCommunity(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return strings.Trim(strings.TrimSpace(name), "/")
}
