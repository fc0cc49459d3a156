package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const fakeReport = `{"totalPosts":24,"codes":[{"name":"Noise Ordinance","description":"Quiet hours and decibel limits","percentage":"58%"},{"name":"Enforcement","description":"Who answers 311 calls","percentage":"42%"}]}`

// fakeAnalysisBackend serves the analysis API from memory. Each job reports
// the statuses in order and then finishes.
type fakeAnalysisBackend struct {
	mu       sync.Mutex
	statuses []string
	polls    int
	started  []map[string]string
	failWith string
	// createStatus, when set, is the status every create request answers.
	createStatus int
}

func newFakeAnalysisServer(t *testing.T, backend *fakeAnalysisBackend) *httptest.Server {
	t.Helper()
	if backend.statuses == nil {
		backend.statuses = []string{
			`{"is_processing":true,"current_stage":"reddit_quotes","progress":30}`,
			`{"is_processing":true,"current_stage":"subtopics","progress":80}`,
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/get_related_subreddits", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"related_subreddits":["r/nyc","r/brooklyn"]}`))
	})
	mux.HandleFunc("/get_themes/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Noise Complaints","description":"Late night noise from bars"}]`))
	})
	mux.HandleFunc("/api/start-processing", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		backend.mu.Lock()
		if backend.createStatus != 0 {
			backend.mu.Unlock()
			w.WriteHeader(backend.createStatus)
			_, _ = w.Write([]byte(`{"error":"Processing already in progress"}`))
			return
		}
		backend.started = append(backend.started, req)
		backend.polls = 0
		backend.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"Processing started"}`))
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		if backend.polls < len(backend.statuses) {
			_, _ = w.Write([]byte(backend.statuses[backend.polls]))
			backend.polls++
			return
		}
		if backend.failWith != "" {
			body, _ := json.Marshal(map[string]any{"is_processing": false, "current_stage": "failed", "error": backend.failWith})
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte(`{"is_processing":false,"current_stage":"complete","progress":100}`))
	})
	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fakeReport))
	})
	mux.HandleFunc("/api/quotes/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/quotes/")
		quotes := []map[string]any{}
		for _, text := range []string{"bars until 4am", "drums at midnight", "construction at dawn", "car alarms"} {
			quotes = append(quotes, map[string]any{"text": text, "subreddit": "nyc", "score": 3, "summary": name})
		}
		_ = json.NewEncoder(w).Encode(quotes)
	})
	mux.HandleFunc("/api/theme-quotes", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Themes []string `json:"themes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		byTheme := map[string][]map[string]any{}
		for _, theme := range req.Themes {
			byTheme[theme] = []map[string]any{{"text": "quote for " + theme, "codes": []string{theme}, "themes": []string{"Noise Complaints"}}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "success",
			"total_quotes":    len(req.Themes),
			"quotes_by_theme": byTheme,
			"themes":          req.Themes,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (b *fakeAnalysisBackend) requests() []map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]string(nil), b.started...)
}
