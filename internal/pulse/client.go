package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL matches the port the analysis backend listens on.
	DefaultBaseURL           = "http://localhost:5050"
	defaultHTTPTimeout       = 30 * time.Second
	defaultRequestsPerSecond = 5
	sessionHeader            = "X-Session-ID"
	errorBodyLimit           = 512
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Logger            *log.Logger
}

// Client talks to the analysis backend over HTTP+JSON.
type Client struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
	session string
	log     *log.Logger
}

// New builds a Client. An empty BaseURL selects DefaultBaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", base, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", base)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	session := uuid.NewString()
	return &Client{
		base:    base,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		session: session,
		log:     logger.With("session", session[:8]),
	}, nil
}

// SessionID identifies this client in backend logs.
func (c *Client) SessionID() string {
	return c.session
}

// CreateJob asks the backend to start an analysis job.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) error {
	req.Community = NormalizeCommunity(req.Community)
	req.Theme = strings.TrimSpace(req.Theme)
	_, err := c.do(ctx, "create job", http.MethodPost, "/api/start-processing", req)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusTooManyRequests {
		return fmt.Errorf("create job: %w", ErrAlreadyRunning)
	}
	return err
}

type statusPayload struct {
	IsProcessing *bool    `json:"is_processing"`
	Running      *bool    `json:"running"`
	CurrentStage *string  `json:"current_stage"`
	Stage        *string  `json:"stage"`
	Progress     *float64 `json:"progress"`
	Error        *string  `json:"error"`
}

// JobStatus polls the state of the current job.
func (c *Client) JobStatus(ctx context.Context) (JobStatus, error) {
	body, err := c.do(ctx, "job status", http.MethodGet, "/api/status", nil)
	if err != nil {
		return JobStatus{}, err
	}
	var payload statusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return JobStatus{}, fmt.Errorf("job status: %w: %v", ErrParse, err)
	}
	running := payload.IsProcessing
	if running == nil {
		running = payload.Running
	}
	if running == nil {
		return JobStatus{}, fmt.Errorf("job status: %w: missing running flag", ErrParse)
	}
	status := JobStatus{Running: *running}
	if payload.CurrentStage != nil {
		status.Stage = ParseStage(*payload.CurrentStage)
	} else if payload.Stage != nil {
		status.Stage = ParseStage(*payload.Stage)
	}
	if payload.Progress != nil {
		progress := int(*payload.Progress)
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		status.Progress = &progress
	}
	if payload.Error != nil {
		status.Error = strings.TrimSpace(*payload.Error)
	}
	return status, nil
}

// Report fetches the finished analysis. The raw body is returned alongside
// the decoded value so it can be exported verbatim.
func (c *Client) Report(ctx context.Context) (Report, json.RawMessage, error) {
	body, err := c.do(ctx, "report", http.MethodGet, "/api/results", nil)
	if err != nil {
		return Report{}, nil, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return Report{}, nil, fmt.Errorf("report: %w: %v", ErrParse, err)
	}
	if _, ok := probe["codes"]; !ok {
		return Report{}, nil, fmt.Errorf("report: %w: missing codes", ErrParse)
	}
	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return Report{}, nil, fmt.Errorf("report: %w: %v", ErrParse, err)
	}
	return report, json.RawMessage(body), nil
}

// Quotes lists every quote assigned to a subtopic.
func (c *Client) Quotes(ctx context.Context, subtopic string) ([]Quote, error) {
	subtopic = strings.TrimSpace(subtopic)
	if subtopic == "" {
		return nil, fmt.Errorf("quotes: %w", ErrEmptyInput)
	}
	body, err := c.do(ctx, "quotes", http.MethodGet, "/api/quotes/"+url.PathEscape(subtopic), nil)
	if err != nil {
		return nil, err
	}
	var quotes []Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("quotes: %w: %v", ErrParse, err)
	}
	if quotes == nil {
		quotes = []Quote{}
	}
	return quotes, nil
}

// Themes asks the backend for candidate themes of a community.
func (c *Client) Themes(ctx context.Context, community string) ([]Theme, error) {
	community = NormalizeCommunity(community)
	if community == "" {
		return nil, fmt.Errorf("themes: %w", ErrEmptyInput)
	}
	body, err := c.do(ctx, "themes", http.MethodGet, "/get_themes/"+url.PathEscape(community), nil)
	if err != nil {
		return nil, err
	}
	var themes []Theme
	if err := json.Unmarshal(body, &themes); err != nil {
		return nil, fmt.Errorf("themes: %w: %v", ErrParse, err)
	}
	result := make([]Theme, 0, len(themes))
	for _, theme := range themes {
		if theme.Name == "" {
			continue
		}
		result = append(result, theme)
	}
	return result, nil
}

// RelatedCommunities maps a free-text topic to community names.
func (c *Client) RelatedCommunities(ctx context.Context, topic string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("related communities: %w", ErrEmptyInput)
	}
	body, err := c.do(ctx, "related communities", http.MethodPost, "/get_related_subreddits", map[string]string{"topic": topic})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Related []string `json:"related_subreddits"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("related communities: %w: %v", ErrParse, err)
	}
	seen := map[string]bool{}
	result := []string{}
	for _, name := range payload.Related {
		name = NormalizeCommunity(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		result = append(result, name)
	}
	return result, nil
}

type aggregatePayload struct {
	Status        string             `json:"status"`
	Message       string             `json:"message"`
	TotalQuotes   *int               `json:"total_quotes"`
	QuotesByTheme map[string][]Quote `json:"quotes_by_theme"`
	Themes        []string           `json:"themes"`
	Codes         []string           `json:"codes"`
}

// AggregatedQuotes fetches quotes grouped by every requested theme. A reply
// that omits any requested theme fails as a whole.
func (c *Client) AggregatedQuotes(ctx context.Context, themes []string) (Aggregate, error) {
	if len(themes) == 0 {
		return Aggregate{}, fmt.Errorf("aggregated quotes: %w", ErrEmptyInput)
	}
	body, err := c.do(ctx, "aggregated quotes", http.MethodPost, "/api/theme-quotes", map[string][]string{"themes": themes})
	if err != nil {
		return Aggregate{}, err
	}
	var payload aggregatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Aggregate{}, fmt.Errorf("aggregated quotes: %w: %v", ErrParse, err)
	}
	if payload.Status != "" && payload.Status != "success" {
		return Aggregate{}, fmt.Errorf("aggregated quotes: %w: %s", ErrNetwork, payload.Message)
	}
	var missing []string
	for _, theme := range themes {
		if _, ok := payload.QuotesByTheme[theme]; !ok {
			missing = append(missing, theme)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Aggregate{}, fmt.Errorf("aggregated quotes: %w (%s)", ErrPartialAggregate, strings.Join(missing, ", "))
	}
	if payload.TotalQuotes == nil {
		return Aggregate{}, fmt.Errorf("aggregated quotes: %w: missing total_quotes", ErrParse)
	}
	agg := Aggregate{
		TotalQuotes:   *payload.TotalQuotes,
		QuotesByTheme: payload.QuotesByTheme,
		Themes:        payload.Themes,
		Codes:         payload.Codes,
	}
	if len(agg.Themes) == 0 {
		agg.Themes = append([]string(nil), themes...)
	}
	return agg, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(sessionHeader, c.session)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("request failed", "op", op, "err", err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %w", op, ErrNetwork, err)
	}
	c.log.Debug("request", "op", op, "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(started))
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage pulls the human readable part out of an error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return strings.TrimSpace(string(body))
}
