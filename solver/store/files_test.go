package store

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"karuta-solver/solver/engine"
)

func TestProbabilitiesRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	s := engine.NewProbabilityStore()
	// ids chosen so that sorted order differs from insertion order
	for _, round := range []string{"q_m03", "10", "q_m01", "2"} {
		s.SetPicks(round, 1+r.Intn(5))
		for j := 0; j < 10; j++ {
			s.Insert(round, engine.MustCardIndex(1+r.Intn(engine.NumCards)), r.Float64())
		}
	}
	s.Insert("tail", engine.MustCardIndex(44), 1e-7)

	path := filepath.Join(t.TempDir(), ProbabilitiesFile)
	if err := SaveProbabilities(path, s); err != nil {
		t.Fatalf("SaveProbabilities: %v", err)
	}
	got, err := LoadProbabilities(path)
	if err != nil {
		t.Fatalf("LoadProbabilities: %v", err)
	}
	if !slices.Equal(got.Rounds(), s.Rounds()) {
		t.Fatalf("rounds = %v, want %v", got.Rounds(), s.Rounds())
	}
	for _, round := range s.Rounds() {
		if got.Picks(round) != s.Picks(round) {
			t.Fatalf("round %s picks = %d, want %d", round, got.Picks(round), s.Picks(round))
		}
		if got.CardsOn(round) != s.CardsOn(round) {
			t.Fatalf("round %s cards = %d, want %d", round, got.CardsOn(round), s.CardsOn(round))
		}
		for _, c := range engine.AllCards() {
			if got.Probability(round, c) != s.Probability(round, c) {
				t.Fatalf("round %s card %d: %v != %v", round, c, got.Probability(round, c), s.Probability(round, c))
			}
		}
	}
}

func TestProbabilitiesDocumentShape(t *testing.T) {
	s := engine.NewProbabilityStore()
	s.SetPicks("0", 2)
	s.Insert("0", engine.MustCardIndex(6), 0.8)
	path := filepath.Join(t.TempDir(), ProbabilitiesFile)
	if err := SaveProbabilities(path, s); err != nil {
		t.Fatalf("SaveProbabilities: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{`"0":`, "probabilities:", "6: 0.8", "picks: 2"} {
		if !strings.Contains(text, want) {
			t.Fatalf("document missing %q:\n%s", want, text)
		}
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadProbabilities(filepath.Join(dir, ProbabilitiesFile))
	if err != nil || s.RoundCount() != 0 {
		t.Fatalf("expected empty store, got %v rounds, err=%v", s.RoundCount(), err)
	}
	st, err := LoadState(filepath.Join(dir, StateFile))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.CurrentRound != "" || st.CurrentFails != 0 || st.UsedChunks == nil || st.PastAnswers == nil {
		t.Fatalf("expected fresh state, got %+v", st)
	}
}

func TestLoadProbabilitiesMalformed(t *testing.T) {
	cases := map[string]string{
		"card out of range": "\"0\":\n  probabilities:\n    45: 0.5\n  picks: 1\n",
		"negative picks":    "\"0\":\n  probabilities: {}\n  picks: -1\n",
		"not a mapping":     "- 1\n- 2\n",
		"bad probability":   "\"0\":\n  probabilities:\n    3: high\n  picks: 1\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), ProbabilitiesFile)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadProbabilities(path); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	st := engine.NewSolverState()
	st.CurrentRound = "q_m02"
	st.CurrentFails = 3
	st.BaseFails = 2
	st.MarkUsed("q_m01", 2)
	st.MarkUsed("q_m02", 4)
	st.Submitted("q_m01", []string{"01", "17"})

	path := filepath.Join(t.TempDir(), StateFile)
	if err := SaveState(path, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.CurrentRound != "q_m02" || got.CurrentFails != 3 || got.BaseFails != 2 {
		t.Fatalf("unexpected state %+v", got)
	}
	if got.UsedChunks["q_m01"] != 2 || got.UsedChunks["q_m02"] != 4 {
		t.Fatalf("unexpected chunks %v", got.UsedChunks)
	}
	if !slices.Equal(got.PastAnswers["q_m01"], []string{"01", "17"}) {
		t.Fatalf("unexpected answers %v", got.PastAnswers)
	}

	data, _ := os.ReadFile(path)
	for _, key := range []string{"current_round:", "current_fails:", "using_chunks:", "past_answers:"} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("state document missing %q", key)
		}
	}
}

func TestLoadStateRejectsBadCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), StateFile)
	body := "current_round: a\ncurrent_fails: 0\nusing_chunks: {}\npast_answers:\n  a: [\"99\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(path); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	for _, body := range []string{"a: 1\n", "b: 2\n"} {
		if err := writeFileAtomic(path, []byte(body)); err != nil {
			t.Fatalf("writeFileAtomic: %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "b: 2\n" {
		t.Fatalf("content = %q", data)
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("expected only the target file, found %d entries", len(ents))
	}
}
