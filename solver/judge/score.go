package judge

import (
	"math"

	"karuta-solver/solver/engine"
)

// ScoreConstant holds the scoring constants of one match.
type ScoreConstant struct {
	ScorePerCorrect float64
	// BonusByUsedData[n] is the multiplier for an answer that used n chunks.
	BonusByUsedData []float64
	ScorePerFail    float64
}

// NewScoreConstant builds the table from the server's bonus list, whose n-th
// entry applies to n chunks. Index 0 (nothing fetched) scores nothing.
func NewScoreConstant(perCorrect float64, bonusFactor []float64, perFail float64) ScoreConstant {
	bonus := make([]float64, 0, len(bonusFactor)+1)
	bonus = append(bonus, 0)
	bonus = append(bonus, bonusFactor...)
	return ScoreConstant{ScorePerCorrect: perCorrect, BonusByUsedData: bonus, ScorePerFail: perFail}
}

// MaxChunks is the largest chunk count the bonus table covers.
func (c ScoreConstant) MaxChunks() int { return len(c.BonusByUsedData) - 1 }

// CalcScore scores an answer from its correct and failed picks. chunksUsed
// must index BonusByUsedData.
func CalcScore(corrects, fails, chunksUsed int, c ScoreConstant) float64 {
	point := float64(corrects) * c.ScorePerCorrect * c.BonusByUsedData[chunksUsed]
	deduct := float64(fails) * c.ScorePerFail
	return point - deduct
}

// CurrentScore is the score the match stands at if every known round is
// answered correctly with the chunks it used so far.
func CurrentScore(st *engine.SolverState, s *engine.ProbabilityStore, c ScoreConstant) float64 {
	point := 0.0
	for _, round := range s.Rounds() {
		point += float64(s.Picks(round)) * c.ScorePerCorrect * c.BonusByUsedData[st.UsedChunks[round]]
	}
	return point - float64(st.CurrentFails)*c.ScorePerFail
}

// Estimate splits picks into expected corrects and fails given the search's
// confidence, rounding both up.
func Estimate(picks int, confidence float64) (corrects, fails int) {
	corrects = int(math.Ceil(float64(picks) * confidence))
	fails = int(math.Ceil(float64(picks) * (1 - confidence)))
	return
}

// Retaken counts the codes in next that were not in prev. A round with no
// previous submission has nothing to retake.
func Retaken(prev, next []string) int {
	if len(prev) == 0 {
		return 0
	}
	had := make(map[string]struct{}, len(prev))
	for _, p := range prev {
		had[p] = struct{}{}
	}
	n := 0
	seen := make(map[string]struct{}, len(next))
	for _, a := range next {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		if _, ok := had[a]; !ok {
			n++
		}
	}
	return n
}
