package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"karuta-solver/solver/agent"
	"karuta-solver/solver/api"
)

type mockConfig struct {
	ChunkDir   string
	Token      string
	HeaderName string
	Expected   []string
	TimeLimit  int // seconds
}

// mockMatch is a one-round rehearsal match served from a directory of
// problem<i>.wav chunks.
type mockMatch struct {
	cfg     mockConfig
	match   agent.Match
	problem agent.Problem
	files   []string

	mu        sync.Mutex
	requested int
	answers   []agent.Answer
}

func newMockMatch(cfg mockConfig) (*mockMatch, error) {
	paths, err := filepath.Glob(filepath.Join(cfg.ChunkDir, "problem*.wav"))
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range paths {
		if api.SegmentIndex(p) >= 0 {
			files = append(files, filepath.Base(p))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no problem<i>.wav chunks in %s", cfg.ChunkDir)
	}
	sort.Slice(files, func(i, j int) bool { return api.SegmentIndex(files[i]) < api.SegmentIndex(files[j]) })
	if cfg.HeaderName == "" {
		cfg.HeaderName = api.TokenHeader
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 60
	}
	return &mockMatch{
		cfg:   cfg,
		match: agent.Match{Problems: 1, BonusFactor: []float64{3.0, 2.5, 2.0, 1.5, 1.0}, Penalty: 20},
		problem: agent.Problem{
			ID:        "q_m01",
			Chunks:    len(files),
			StartAt:   time.Now().Unix(),
			TimeLimit: cfg.TimeLimit,
			Data:      5,
		},
		files: files,
	}, nil
}

func Router(m *mockMatch) http.Handler {
	r := chi.NewRouter()
	r.Use(m.auth)

	r.Get("/match", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.match)
	})
	r.Get("/problem", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, m.problem)
	})

	r.Post("/problem/chunks", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("n"))
		if err != nil || n < 1 || n > len(m.files) {
			http.Error(w, fmt.Sprintf("n must be between 1 and %d", len(m.files)), http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.requested = max(m.requested, n)
		m.mu.Unlock()
		writeJSON(w, map[string]any{"chunks": m.files[:n]})
	})

	r.Get("/problem/chunks/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		m.mu.Lock()
		requested := m.requested
		m.mu.Unlock()
		idx := -1
		for i, f := range m.files {
			if f == name {
				idx = i
			}
		}
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		if idx >= requested {
			http.Error(w, "chunk not requested yet", http.StatusForbidden)
			return
		}
		data, err := os.ReadFile(filepath.Join(m.cfg.ChunkDir, name))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(data)
	})

	r.Post("/problem", func(w http.ResponseWriter, r *http.Request) {
		if time.Now().After(m.problem.Deadline()) {
			http.Error(w, "outside answer time", http.StatusBadRequest)
			return
		}
		var a agent.Answer
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if a.ProblemID != m.problem.ID {
			http.Error(w, "unknown problem "+a.ProblemID, http.StatusBadRequest)
			return
		}
		if err := agent.Validate(a, m.problem.Data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.answers = append(m.answers, a)
		m.mu.Unlock()
		out := map[string]any{"problem_id": a.ProblemID, "accepted": true}
		if len(m.cfg.Expected) > 0 {
			out["correct"] = m.correct(a)
		}
		writeJSON(w, out)
	})

	return r
}

func (m *mockMatch) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.Token != "" && r.Header.Get(m.cfg.HeaderName) != m.cfg.Token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// correct counts the codes of a that appear in the expected answer.
func (m *mockMatch) correct(a agent.Answer) int {
	want := make(map[string]bool, len(m.cfg.Expected))
	for _, e := range m.cfg.Expected {
		want[e] = true
	}
	n := 0
	for _, code := range a.Answers {
		if want[code] {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
