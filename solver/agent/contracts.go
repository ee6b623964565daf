package agent

import (
	"errors"
	"fmt"
	"time"

	"karuta-solver/solver/engine"
)

// Match is what stays fixed over a whole match. A card kind appears at most
// once per match, whatever its reading language.
type Match struct {
	Problems      int       `json:"problems"`
	BonusFactor   []float64 `json:"bonus_factor"` // n-th entry applies to n chunks
	Penalty       int       `json:"penalty"`
	ChangePenalty int       `json:"change_penalty,omitempty"`
	WrongPenalty  int       `json:"wrong_penalty,omitempty"`
	CorrectPoint  int       `json:"correct_point,omitempty"`
}

// ScorePerCorrect defaults to 1 when the server sends no correct_point.
func (m Match) ScorePerCorrect() float64 {
	if m.CorrectPoint > 0 {
		return float64(m.CorrectPoint)
	}
	return 1
}

// FailPenalty is the deduction per retaken card.
func (m Match) FailPenalty() float64 {
	if m.Penalty > 0 {
		return float64(m.Penalty)
	}
	return float64(m.ChangePenalty)
}

// Problem is one round as served by the match server.
type Problem struct {
	ID        string `json:"id"`
	Chunks    int    `json:"chunks"`
	StartAt   int64  `json:"start_at"`
	StartsAt  int64  `json:"starts_at,omitempty"`
	TimeLimit int    `json:"time_limit"` // seconds from StartAt
	Data      int    `json:"data"`       // overlapping readings = cards to answer
}

func (p Problem) OpensAt() time.Time {
	if p.StartAt == 0 {
		return time.Unix(p.StartsAt, 0)
	}
	return time.Unix(p.StartAt, 0)
}

func (p Problem) Deadline() time.Time {
	return p.OpensAt().Add(time.Duration(p.TimeLimit) * time.Second)
}

// Chunk is one decoded piece of a round's audio.
type Chunk struct {
	SegmentIndex int
	Samples      []float32
	SampleRate   int
}

// Answer is posted for a round; Answers holds 2-digit zero-padded card codes.
type Answer struct {
	ProblemID string   `json:"problem_id"`
	Answers   []string `json:"answers"`
}

var (
	ErrAnswerLength = errors.New("answer length does not match the round's pick count")
	ErrAnswerCode   = errors.New("invalid answer code")
)

// NewAnswer builds the answer for round from cards.
func NewAnswer(round string, cards []engine.CardIndex) Answer {
	return Answer{ProblemID: round, Answers: engine.Codes(cards)}
}

// Validate checks a against the number of cards the round expects.
func Validate(a Answer, picks int) error {
	if a.ProblemID == "" {
		return fmt.Errorf("%w: missing problem id", ErrAnswerCode)
	}
	if len(a.Answers) != picks {
		return fmt.Errorf("%w: round %s has %d codes, want %d", ErrAnswerLength, a.ProblemID, len(a.Answers), picks)
	}
	seen := make(map[string]bool, len(a.Answers))
	for _, code := range a.Answers {
		if len(code) != 2 {
			return fmt.Errorf("%w: %q is not 2 digits", ErrAnswerCode, code)
		}
		if _, err := engine.CardFromCode(code); err != nil {
			return fmt.Errorf("%w: %v", ErrAnswerCode, err)
		}
		if seen[code] {
			return fmt.Errorf("%w: %q repeated", ErrAnswerCode, code)
		}
		seen[code] = true
	}
	return nil
}
