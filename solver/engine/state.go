package engine

// SolverState is what the solve loop needs to resume after a restart.
type SolverState struct {
	CurrentRound string
	CurrentFails int
	// BaseFails is CurrentFails as of the last submission; retaken cards of the
	// active round are counted on top of it.
	BaseFails   int
	UsedChunks  map[string]int
	PastAnswers map[string][]string
}

func NewSolverState() *SolverState {
	return &SolverState{
		UsedChunks:  map[string]int{},
		PastAnswers: map[string][]string{},
	}
}

// MarkUsed records that n chunks were fetched for round. The count never goes down.
func (st *SolverState) MarkUsed(round string, n int) {
	if st.UsedChunks == nil {
		st.UsedChunks = map[string]int{}
	}
	if n > st.UsedChunks[round] {
		st.UsedChunks[round] = n
	}
}

// Submitted records answers as the last ones posted for round.
func (st *SolverState) Submitted(round string, answers []string) {
	if st.PastAnswers == nil {
		st.PastAnswers = map[string][]string{}
	}
	st.PastAnswers[round] = append([]string(nil), answers...)
}
