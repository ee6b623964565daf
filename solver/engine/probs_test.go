package engine

import (
	"slices"
	"testing"
)

func kanaCard(t *testing.T, s string) CardIndex {
	t.Helper()
	c, err := CardFromSymbol(s)
	if err != nil {
		t.Fatalf("CardFromSymbol(%q): %v", s, err)
	}
	return c
}

func TestProbabilityStoreInsert(t *testing.T) {
	s := NewProbabilityStore()
	for _, k := range []string{"か", "と", "り"} {
		s.Insert("0", kanaCard(t, k), 0.8)
	}
	for _, k := range []string{"つ", "ら"} {
		s.Insert("1", kanaCard(t, k), 0.8)
	}
	for _, k := range []string{"し", "た", "の", "わ"} {
		s.Insert("2", kanaCard(t, k), 0.8)
	}

	for round, want := range map[string]int{"0": 3, "1": 2, "2": 4} {
		if got := s.CardsOn(round); got != want {
			t.Errorf("CardsOn(%s) = %d, want %d", round, got, want)
		}
		if got := s.Picks(round); got != 1 {
			t.Errorf("Picks(%s) = %d, want default 1", round, got)
		}
	}
	if got := s.Probability("1", kanaCard(t, "ら")); got != 0.8 {
		t.Fatalf("Probability(1, ら) = %v", got)
	}
	for _, round := range []string{"0", "1", "2", "unknown"} {
		if got := s.Probability(round, kanaCard(t, "あ")); got != 0 {
			t.Fatalf("Probability(%s, あ) = %v, want 0", round, got)
		}
	}
	if !slices.Equal(s.Rounds(), []string{"0", "1", "2"}) || s.RoundCount() != 3 {
		t.Fatalf("unexpected rounds %v", s.Rounds())
	}
}

func TestProbabilityStoreLastWriteWins(t *testing.T) {
	s := NewProbabilityStore()
	c := MustCardIndex(3)
	s.Insert("r", c, 0.2)
	s.Insert("r", c, 0.7)
	if got := s.Probability("r", c); got != 0.7 {
		t.Fatalf("got %v, want 0.7", got)
	}
	s.Remove("r", c)
	if got := s.CardsOn("r"); got != 0 {
		t.Fatalf("CardsOn after Remove = %d", got)
	}
}

func TestProbabilityStoreSetPicksCreatesRound(t *testing.T) {
	s := NewProbabilityStore()
	s.SetPicks("b", 3)
	s.Insert("a", MustCardIndex(1), 0.5)
	s.SetPicks("b", 4)
	if !slices.Equal(s.Rounds(), []string{"b", "a"}) {
		t.Fatalf("rounds out of insertion order: %v", s.Rounds())
	}
	if s.Picks("b") != 4 || s.Picks("a") != 1 {
		t.Fatalf("picks b=%d a=%d", s.Picks("b"), s.Picks("a"))
	}
	e, ok := s.Entry("a")
	if !ok {
		t.Fatalf("Entry(a) missing")
	}
	e.Probabilities[MustCardIndex(1)] = 0
	if s.Probability("a", MustCardIndex(1)) != 0.5 {
		t.Fatalf("Entry must return a copy")
	}
}
