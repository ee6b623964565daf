package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"karuta-solver/solver/engine"
)

const (
	ProbabilitiesFile = "pick-cards.yaml"
	StateFile         = "solver-state.yaml"
)

var ErrMalformed = errors.New("malformed document")

type roundDoc struct {
	Probabilities map[int]float64 `yaml:"probabilities"`
	Picks         int             `yaml:"picks"`
}

type stateDoc struct {
	CurrentRound string              `yaml:"current_round"`
	CurrentFails int                 `yaml:"current_fails"`
	BaseFails    int                 `yaml:"base_fails"`
	UsingChunks  map[string]int      `yaml:"using_chunks"`
	PastAnswers  map[string][]string `yaml:"past_answers"`
}

// SaveProbabilities rewrites path with every round of s, in round order.
func SaveProbabilities(path string, s *engine.ProbabilityStore) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, round := range s.Rounds() {
		e, _ := s.Entry(round)
		doc := roundDoc{Probabilities: make(map[int]float64, len(e.Probabilities)), Picks: e.Picks}
		for c, p := range e.Probabilities {
			doc.Probabilities[c.Int()] = p
		}
		val := &yaml.Node{}
		if err := val.Encode(doc); err != nil {
			return fmt.Errorf("encode round %s: %w", round, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: round}
		root.Content = append(root.Content, key, val)
	}
	data, err := encode(root)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// LoadProbabilities reads a document written by SaveProbabilities. A missing
// file yields an empty store.
func LoadProbabilities(path string) (*engine.ProbabilityStore, error) {
	s := engine.NewProbabilityStore()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if root.Kind == 0 {
		return s, nil
	}
	doc := root.Content[0]
	if doc.Kind == yaml.ScalarNode && doc.Tag == "!!null" {
		return s, nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: top level is not a mapping", ErrMalformed, path)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		round := doc.Content[i].Value
		var rd roundDoc
		if err := doc.Content[i+1].Decode(&rd); err != nil {
			return nil, fmt.Errorf("%w: %s: round %s: %v", ErrMalformed, path, round, err)
		}
		if rd.Picks < 0 {
			return nil, fmt.Errorf("%w: %s: round %s: negative picks %d", ErrMalformed, path, round, rd.Picks)
		}
		s.SetPicks(round, rd.Picks)
		for n, p := range rd.Probabilities {
			c, err := engine.NewCardIndex(n)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: round %s: %v", ErrMalformed, path, round, err)
			}
			s.Insert(round, c, p)
		}
	}
	return s, nil
}

func SaveState(path string, st *engine.SolverState) error {
	doc := stateDoc{
		CurrentRound: st.CurrentRound,
		CurrentFails: st.CurrentFails,
		BaseFails:    st.BaseFails,
		UsingChunks:  st.UsedChunks,
		PastAnswers:  st.PastAnswers,
	}
	if doc.UsingChunks == nil {
		doc.UsingChunks = map[string]int{}
	}
	if doc.PastAnswers == nil {
		doc.PastAnswers = map[string][]string{}
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// LoadState reads the solver state; a missing file yields a fresh state.
func LoadState(path string) (*engine.SolverState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return engine.NewSolverState(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc stateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if doc.CurrentFails < 0 || doc.BaseFails < 0 {
		return nil, fmt.Errorf("%w: %s: negative fail count", ErrMalformed, path)
	}
	st := engine.NewSolverState()
	st.CurrentRound = doc.CurrentRound
	st.CurrentFails = doc.CurrentFails
	st.BaseFails = doc.BaseFails
	for k, v := range doc.UsingChunks {
		st.UsedChunks[k] = v
	}
	for k, v := range doc.PastAnswers {
		for _, code := range v {
			if _, err := engine.CardFromCode(code); err != nil {
				return nil, fmt.Errorf("%w: %s: round %s: %v", ErrMalformed, path, k, err)
			}
		}
		st.PastAnswers[k] = v
	}
	return st, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic replaces path with data so that a crash leaves either the
// old or the new content.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
