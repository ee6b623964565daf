package engine

// ShouldPickCards is one round's latest estimate: a probability per card and
// how many cards the round's answer holds.
type ShouldPickCards struct {
	Probabilities map[CardIndex]float64
	Picks         int
}

// ShouldPickList is a round's candidate list at a given threshold.
type ShouldPickList struct {
	RoundID string
	Cards   []CardIndex
	Picks   int
}

// Solution is the outcome of SolveByBinarySearch.
type Solution struct {
	Picks      [][]CardIndex // per round, in store order
	Confidence float64       // converged threshold
	Nodes      int           // search nodes visited over every bisection step
}
