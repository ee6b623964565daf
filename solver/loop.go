package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"karuta-solver/solver/agent"
	"karuta-solver/solver/api"
	"karuta-solver/solver/engine"
	"karuta-solver/solver/judge"
	"karuta-solver/solver/store"
)

// requester is the match server as the loop sees it.
type requester interface {
	GetMatch(ctx context.Context) (agent.Match, error)
	GetProblem(ctx context.Context) (agent.Problem, error)
	GetChunks(ctx context.Context, n int, saveDir string) ([]agent.Chunk, error)
	PostAnswer(ctx context.Context, a agent.Answer) error
}

type session struct {
	req        requester
	classifier agent.Classifier
	db         *store.DB // nil when the attempt log is disabled
	dir        string
	probs      *engine.ProbabilityStore
	state      *engine.SolverState
	stats      *MatchStats
	margin     time.Duration
	poll       time.Duration
	// closed holds rounds whose repost the server refused; their last posted
	// answer is final and the search keeps it.
	closed map[string]bool
}

// runMatch plays rounds until the match's problem count is reached. Rounds
// already in the store count as finished, except the one the state was
// working on when it was last saved.
func (s *session) runMatch(ctx context.Context) error {
	m, err := s.req.GetMatch(ctx)
	if err != nil {
		return fmt.Errorf("get match: %w", err)
	}
	sc := judge.NewScoreConstant(m.ScorePerCorrect(), m.BonusFactor, m.FailPenalty())
	section(fmt.Sprintf("MATCH %d problems, bonus %v, penalty %.0f", m.Problems, m.BonusFactor, sc.ScorePerFail))

	finished := map[string]bool{}
	for _, r := range s.probs.Rounds() {
		if r != s.state.CurrentRound {
			finished[r] = true
		}
	}
	for len(finished) < m.Problems {
		p, err := s.waitProblem(ctx, finished)
		if err != nil {
			return err
		}
		if err := s.runRound(ctx, m, sc, p); err != nil {
			return fmt.Errorf("round %s: %w", p.ID, err)
		}
		finished[p.ID] = true
		log.Printf("current score %s", bold(fmt.Sprintf("%.2f", judge.CurrentScore(s.state, s.probs, sc))))
		if s.db != nil {
			if attempts, posts, err := s.db.CountAttempts(ctx, p.ID); err == nil {
				log.Printf("db: %s has %d attempts, %d submissions logged", p.ID, attempts, posts)
			}
		}
	}
	return nil
}

// waitProblem polls until the server serves a round not yet finished. A
// non-2xx reply means no round is open yet, except 401 and 403 which mean the
// token is wrong.
func (s *session) waitProblem(ctx context.Context, finished map[string]bool) (agent.Problem, error) {
	for {
		p, err := s.req.GetProblem(ctx)
		var se *api.StatusError
		switch {
		case errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden):
			return p, fmt.Errorf("get problem: %w", err)
		case errors.As(err, &se):
			if debugState {
				log.Printf("%s %v", dim("waiting:"), se)
			}
		case err != nil:
			return p, fmt.Errorf("get problem: %w", err)
		case p.ID != "" && !finished[p.ID]:
			return p, nil
		}
		select {
		case <-ctx.Done():
			return agent.Problem{}, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

// runRound fetches more and more chunks of p, re-solving the whole match after
// each fetch, and posts the best answers found once further chunks cannot
// pay off or the answer window closes.
func (s *session) runRound(ctx context.Context, m agent.Match, sc judge.ScoreConstant, p agent.Problem) error {
	sub(fmt.Sprintf("Round %s (%d cards, %d chunks)", cyan(p.ID), p.Data, p.Chunks))
	rctx, cancel := context.WithDeadline(ctx, p.Deadline().Add(-s.margin))
	defer cancel()

	if s.state.CurrentRound != p.ID {
		s.state.CurrentRound = p.ID
		s.state.CurrentFails = s.state.BaseFails
	}
	rs := s.stats.Round(p.ID)

	maxChunks := sc.MaxChunks()
	if p.Chunks > 0 && p.Chunks < maxChunks {
		maxChunks = p.Chunks
	}
	first := max(1, s.state.UsedChunks[p.ID])

	best := math.Inf(-1)
	var bestAnswers map[string][]engine.CardIndex
	for n := first; n <= maxChunks; n++ {
		if rctx.Err() != nil {
			log.Printf("%s answer window closing, stopping at %d chunks", warn("deadline:"), n-1)
			break
		}
		chunks, err := s.req.GetChunks(rctx, n, s.dir)
		if err != nil {
			if rctx.Err() != nil {
				break
			}
			return fmt.Errorf("get %d chunks: %w", n, err)
		}
		probs, err := agent.ClassifyChunks(rctx, s.classifier, chunks)
		if err != nil {
			if rctx.Err() != nil {
				break
			}
			return err
		}
		for i, v := range probs {
			s.probs.Insert(p.ID, engine.MustCardIndex(i+1), v)
		}
		s.probs.SetPicks(p.ID, p.Data)
		s.state.MarkUsed(p.ID, n)

		sol, ok := engine.SolveByBinarySearchFixed(m.Problems, s.probs, s.fixedPicks())
		attempt := store.Attempt{RoundID: p.ID, Chunks: n, Feasible: ok}
		if !ok {
			log.Printf("%s solution not found with using %d chunks", warn("infeasible:"), n)
			rs.record(attempt)
			s.logAttempt(ctx, attempt)
			if err := s.save(); err != nil {
				return err
			}
			continue
		}

		answers := s.answersFrom(sol)
		retaken := s.retaken(answers)
		corrects, fails := judge.Estimate(p.Data, sol.Confidence)
		score := judge.CalcScore(corrects, fails+retaken, n, sc)
		attempt.Confidence, attempt.Score, attempt.Nodes = sol.Confidence, score, sol.Nodes
		if score > best {
			best, bestAnswers = score, answers
			attempt.Improved = true
			s.state.CurrentFails = s.state.BaseFails + retaken
		}
		rs.record(attempt)
		s.logAttempt(ctx, attempt)
		log.Printf("%d chunks: confidence %.4f score %.2f retaken %d nodes %d %s",
			n, sol.Confidence, score, retaken, sol.Nodes, improvedTag(attempt.Improved))
		if debugState {
			s.debugSolution(sol)
		}
		if err := s.save(); err != nil {
			return err
		}

		if n+1 > maxChunks {
			break
		}
		if float64(p.Data)*sc.ScorePerCorrect*sc.BonusByUsedData[n+1] <= best {
			break
		}
	}

	if bestAnswers == nil {
		log.Printf("%s no answer for %s", bad("skipped:"), p.ID)
		return nil
	}
	return s.submit(ctx, m, p.ID, bestAnswers)
}

func improvedTag(improved bool) string {
	if improved {
		return good("best")
	}
	return ""
}

// answersFrom maps the solution's per-round picks onto round ids; the search
// walks rounds in store order and may stop short of the last one.
func (s *session) answersFrom(sol *engine.Solution) map[string][]engine.CardIndex {
	rounds := s.probs.Rounds()
	out := make(map[string][]engine.CardIndex, len(sol.Picks))
	for i, picks := range sol.Picks {
		if i >= len(rounds) {
			break
		}
		out[rounds[i]] = picks
	}
	return out
}

// retaken counts the cards that answers would newly take over what was posted.
func (s *session) retaken(answers map[string][]engine.CardIndex) int {
	n := 0
	for round, cards := range answers {
		n += judge.Retaken(s.state.PastAnswers[round], engine.Codes(cards))
	}
	return n
}

// fixedPicks pins every closed round to its last posted answer.
func (s *session) fixedPicks() map[string][]engine.CardIndex {
	if len(s.closed) == 0 {
		return nil
	}
	fixed := make(map[string][]engine.CardIndex, len(s.closed))
	for round := range s.closed {
		var cards []engine.CardIndex
		for _, code := range s.state.PastAnswers[round] {
			if c, err := engine.CardFromCode(code); err == nil {
				cards = append(cards, c)
			}
		}
		fixed[round] = cards
	}
	return fixed
}

// submit posts every round whose answer changed, earlier rounds first. When
// the server refuses an earlier round, that round is closed and the match is
// solved again with it pinned before anything else goes out, so no card ends
// up answered on two rounds. The active round's refusal is returned.
func (s *session) submit(ctx context.Context, m agent.Match, active string, answers map[string][]engine.CardIndex) error {
	retaken := 0
	for {
		refused := false
		for _, round := range s.probs.Rounds() {
			if round == active {
				continue
			}
			r, err := s.post(ctx, round, answers[round])
			var se *api.StatusError
			if errors.As(err, &se) {
				log.Printf("%s %s not updated: %v", warn("rejected:"), round, se)
				if s.closed == nil {
					s.closed = map[string]bool{}
				}
				s.closed[round] = true
				refused = true
				continue
			}
			if err != nil {
				return err
			}
			retaken += r
		}
		if !refused {
			break
		}
		sol, ok := engine.SolveByBinarySearchFixed(m.Problems, s.probs, s.fixedPicks())
		if !ok {
			log.Printf("%s no assignment around closed rounds, %s not posted", bad("skipped:"), active)
			answers = nil
			break
		}
		answers = s.answersFrom(sol)
	}
	if cards, ok := answers[active]; ok {
		r, err := s.post(ctx, active, cards)
		if err != nil {
			return err
		}
		retaken += r
	}
	s.state.CurrentFails = s.state.BaseFails + retaken
	s.state.BaseFails = s.state.CurrentFails
	s.stats.Round(active).Retaken += retaken
	return s.save()
}

// post sends cards for round unless they match the last posted answer and
// returns how many cards it retook.
func (s *session) post(ctx context.Context, round string, cards []engine.CardIndex) (int, error) {
	a := agent.NewAnswer(round, cards)
	if cards == nil || slices.Equal(a.Answers, s.state.PastAnswers[round]) {
		return 0, nil
	}
	if err := agent.Validate(a, s.probs.Picks(round)); err != nil {
		return 0, err
	}
	if err := s.req.PostAnswer(ctx, a); err != nil {
		return 0, fmt.Errorf("post answer: %w", err)
	}
	r := judge.Retaken(s.state.PastAnswers[round], a.Answers)
	s.state.Submitted(round, a.Answers)
	s.stats.Round(round).Posted++
	log.Printf("%s %s %s", good("posted"), round, strings.Join(a.Answers, ","))
	if s.db != nil {
		if err := s.db.InsertSubmission(ctx, round, a.Answers, r); err != nil {
			log.Printf("db: insert submission: %v", err)
		}
	}
	return r, nil
}

func (s *session) save() error {
	if err := store.SaveProbabilities(filepath.Join(s.dir, store.ProbabilitiesFile), s.probs); err != nil {
		return fmt.Errorf("save probabilities: %w", err)
	}
	if err := store.SaveState(filepath.Join(s.dir, store.StateFile), s.state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *session) logAttempt(ctx context.Context, a store.Attempt) {
	if s.db == nil {
		return
	}
	if err := s.db.InsertAttempt(ctx, a); err != nil {
		log.Printf("db: insert attempt: %v", err)
	}
}

func (s *session) debugSolution(sol *engine.Solution) {
	rounds := s.probs.Rounds()
	for i, picks := range sol.Picks {
		kana := make([]string, len(picks))
		for j, c := range picks {
			kana[j] = c.String()
		}
		fmt.Printf("   %s %s\n", dim(rounds[i]), strings.Join(kana, " "))
	}
}
