package engine

import "slices"

// Adjust walks the rounds in store order and returns, per round, the carry
// factor of every card (indexed by card-1).
//
// If P_i,c is the classifier's estimate that round i holds card c, the chance
// that round i takes c and round i-1 did not is approximated by
//
//	Q_i,c = P_i,c * Σ_{d≠c} carry_{i-1,d}
//
// with carry_0 = P_0. The recurrence is an approximation, not a conditional
// update, and is kept exactly as is: the thresholds the search converges to
// depend on it.
func Adjust(s *ProbabilityStore) [][NumCards]float64 {
	rounds := s.rounds
	out := make([][NumCards]float64, len(rounds))
	if len(rounds) == 0 {
		return out
	}
	for _, c := range AllCards() {
		out[0][c-1] = s.Probability(rounds[0], c)
	}
	for i := 1; i < len(rounds); i++ {
		prev := &out[i-1]
		for after := 0; after < NumCards; after++ {
			sum := 0.0
			for before := 0; before < NumCards; before++ {
				if before != after {
					sum += prev[before]
				}
			}
			out[i][after] = sum
		}
	}
	return out
}

// EffectiveProbabilities is P_i,c * carry_i,c for every round and card.
func EffectiveProbabilities(s *ProbabilityStore) [][NumCards]float64 {
	carry := Adjust(s)
	for i, round := range s.rounds {
		for _, c := range AllCards() {
			carry[i][c-1] *= s.Probability(round, c)
		}
	}
	return carry
}

// BuildPickLists keeps, per round, the cards whose effective probability is
// strictly above threshold. It reports false as soon as a round ends up with
// fewer candidates than it needs picks.
func BuildPickLists(s *ProbabilityStore, threshold float64) ([]ShouldPickList, bool) {
	return buildPickLists(s, threshold, nil)
}

// buildPickLists is BuildPickLists where a round listed in fixed gets exactly
// its fixed cards as candidates.
func buildPickLists(s *ProbabilityStore, threshold float64, fixed map[string][]CardIndex) ([]ShouldPickList, bool) {
	eff := EffectiveProbabilities(s)
	lists := make([]ShouldPickList, 0, len(s.rounds))
	for i, round := range s.rounds {
		if cards, ok := fixed[round]; ok {
			pinned := slices.Clone(cards)
			slices.Sort(pinned)
			lists = append(lists, ShouldPickList{RoundID: round, Cards: pinned, Picks: len(pinned)})
			continue
		}
		picks := s.Picks(round)
		l := ShouldPickList{RoundID: round, Picks: picks}
		for _, c := range AllCards() {
			if threshold < eff[i][c-1] {
				l.Cards = append(l.Cards, c)
			}
		}
		if len(l.Cards) < picks {
			return nil, false
		}
		lists = append(lists, l)
	}
	return lists, true
}
