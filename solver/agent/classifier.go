package agent

import (
	"context"
	"errors"
	"fmt"

	"karuta-solver/solver/engine"
)

// Classifier turns a waveform into one probability per card kind. The values
// are expected to sum to about 1 but nothing relies on exact normalisation.
type Classifier interface {
	Classify(ctx context.Context, samples []float32) ([]float64, error)
}

var ErrNoChunks = errors.New("no chunks to classify")

// ClassifyChunks classifies every chunk and averages the vectors.
func ClassifyChunks(ctx context.Context, c Classifier, chunks []Chunk) ([]float64, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	avg := make([]float64, engine.NumCards)
	for _, ch := range chunks {
		probs, err := c.Classify(ctx, ch.Samples)
		if err != nil {
			return nil, fmt.Errorf("classify chunk %d: %w", ch.SegmentIndex, err)
		}
		if len(probs) != engine.NumCards {
			return nil, fmt.Errorf("classify chunk %d: got %d probabilities, want %d", ch.SegmentIndex, len(probs), engine.NumCards)
		}
		for i, p := range probs {
			avg[i] += p
		}
	}
	for i := range avg {
		avg[i] /= float64(len(chunks))
	}
	return avg, nil
}
