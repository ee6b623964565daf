package engine

// ProbabilityStore keeps, per round, the latest card probabilities and the
// required pick count. Rounds are kept in first-insertion order, which is the
// order the adjuster walks them in. Not safe for concurrent use.
type ProbabilityStore struct {
	rounds []string
	should map[string]*ShouldPickCards
}

func NewProbabilityStore() *ProbabilityStore {
	return &ProbabilityStore{should: map[string]*ShouldPickCards{}}
}

func (s *ProbabilityStore) entry(round string) *ShouldPickCards {
	e, ok := s.should[round]
	if !ok {
		e = &ShouldPickCards{Probabilities: map[CardIndex]float64{}, Picks: 1}
		s.should[round] = e
		s.rounds = append(s.rounds, round)
	}
	return e
}

// Insert overwrites the probability of card on round.
func (s *ProbabilityStore) Insert(round string, card CardIndex, p float64) {
	s.entry(round).Probabilities[card] = p
}

func (s *ProbabilityStore) SetPicks(round string, picks int) {
	s.entry(round).Picks = picks
}

func (s *ProbabilityStore) Remove(round string, card CardIndex) {
	if e, ok := s.should[round]; ok {
		delete(e.Probabilities, card)
	}
}

// Probability returns 0 for unknown rounds and cards.
func (s *ProbabilityStore) Probability(round string, card CardIndex) float64 {
	if e, ok := s.should[round]; ok {
		return e.Probabilities[card]
	}
	return 0
}

func (s *ProbabilityStore) Picks(round string) int {
	if e, ok := s.should[round]; ok {
		return e.Picks
	}
	return 0
}

func (s *ProbabilityStore) CardsOn(round string) int {
	if e, ok := s.should[round]; ok {
		return len(e.Probabilities)
	}
	return 0
}

func (s *ProbabilityStore) Rounds() []string {
	out := make([]string, len(s.rounds))
	copy(out, s.rounds)
	return out
}

func (s *ProbabilityStore) RoundCount() int { return len(s.rounds) }

// Entry returns a copy of round's data.
func (s *ProbabilityStore) Entry(round string) (ShouldPickCards, bool) {
	e, ok := s.should[round]
	if !ok {
		return ShouldPickCards{}, false
	}
	probs := make(map[CardIndex]float64, len(e.Probabilities))
	for k, v := range e.Probabilities {
		probs[k] = v
	}
	return ShouldPickCards{Probabilities: probs, Picks: e.Picks}, true
}
