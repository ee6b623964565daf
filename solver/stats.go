package main

import (
	"fmt"
	"math"

	"karuta-solver/solver/store"
)

type RoundStats struct {
	Round      string
	Attempts   int
	Infeasible int
	Nodes      int
	BestScore  float64
	BestChunks int
	Confidence float64
	Posted     int
	Retaken    int
}

// FeasibleRate is the share of attempts that found an assignment.
func (r *RoundStats) FeasibleRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Attempts-r.Infeasible) / float64(r.Attempts)
}

func (r *RoundStats) record(a store.Attempt) {
	r.Attempts++
	r.Nodes += a.Nodes
	if !a.Feasible {
		r.Infeasible++
		return
	}
	if a.Improved {
		r.BestScore, r.BestChunks, r.Confidence = a.Score, a.Chunks, a.Confidence
	}
}

// MatchStats keeps per-round stats in the order rounds were first seen.
type MatchStats struct {
	order  []string
	rounds map[string]*RoundStats
}

func newMatchStats() *MatchStats {
	return &MatchStats{rounds: map[string]*RoundStats{}}
}

func (m *MatchStats) Round(id string) *RoundStats {
	if r, ok := m.rounds[id]; ok {
		return r
	}
	r := &RoundStats{Round: id, BestScore: math.Inf(-1)}
	m.order = append(m.order, id)
	m.rounds[id] = r
	return r
}

func (m *MatchStats) Totals() (attempts, infeasible, nodes int) {
	for _, id := range m.order {
		r := m.rounds[id]
		attempts += r.Attempts
		infeasible += r.Infeasible
		nodes += r.Nodes
	}
	return
}

func printSummary(m *MatchStats) {
	section("SUMMARY")
	for _, id := range m.order {
		r := m.rounds[id]
		best := dim("no answer")
		if !math.IsInf(r.BestScore, -1) {
			best = fmt.Sprintf("best %.2f @%d chunks conf %.4f", r.BestScore, r.BestChunks, r.Confidence)
		}
		fmt.Printf("%s  attempts=%d feasible=%.0f%% nodes=%d posted=%d retaken=%d  %s\n",
			cyan(id), r.Attempts, 100*r.FeasibleRate(), r.Nodes, r.Posted, r.Retaken, best)
	}
	attempts, infeasible, nodes := m.Totals()
	fmt.Printf("%s attempts=%d infeasible=%d nodes=%d\n", bold("total"), attempts, infeasible, nodes)
}
