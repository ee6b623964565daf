package engine

// Eps is the resolution of the threshold bisection.
const Eps = 0.001

// SolveByBinarySearch finds the highest threshold in [0,1] (to within Eps)
// at which Solve still finds an assignment, and returns that assignment with
// the threshold as its confidence. It reports false when even the lowest
// threshold is infeasible or the store holds no rounds.
func SolveByBinarySearch(rounds int, s *ProbabilityStore) (*Solution, bool) {
	return SolveByBinarySearchFixed(rounds, s, nil)
}

// SolveByBinarySearchFixed is SolveByBinarySearch with the picks of some
// rounds pinned: a round in fixed always answers exactly those cards, whatever
// the threshold, and the cards are unavailable to every other round.
func SolveByBinarySearchFixed(rounds int, s *ProbabilityStore, fixed map[string][]CardIndex) (*Solution, bool) {
	if s.RoundCount() == 0 {
		return nil, false
	}
	nodes := 0
	start, end := 0.0, 1.0
	for Eps < end-start {
		mid := (end-start)/2 + start
		_, ok, n := solve(rounds, s, mid, fixed)
		nodes += n
		if ok {
			start = mid
		} else {
			end = mid
		}
	}
	picks, ok, n := solve(rounds, s, start, fixed)
	nodes += n
	if !ok {
		return nil, false
	}
	return &Solution{Picks: picks, Confidence: start, Nodes: nodes}, true
}

// Solve searches, round by round in store order, for a choice of Picks cards
// per round out of that round's candidates such that no card is used twice.
// Rounds past the match length or past the last known round are left out.
// Combinations are tried in lexicographic order of the candidate list and the
// first complete assignment wins.
func Solve(rounds int, s *ProbabilityStore, threshold float64) ([][]CardIndex, bool) {
	picks, ok, _ := solve(rounds, s, threshold, nil)
	return picks, ok
}

type memoKey struct {
	depth int
	used  uint64
}

type searcher struct {
	lists []ShouldPickList
	limit int
	ways  [][]CardIndex
	used  uint64
	// dead holds (round, used cards) states already shown to have no completion.
	// Whether a state completes depends only on the round and the used set, so
	// skipping them never changes which assignment is found first.
	dead  map[memoKey]bool
	nodes int
}

func solve(rounds int, s *ProbabilityStore, threshold float64, fixed map[string][]CardIndex) ([][]CardIndex, bool, int) {
	lists, ok := buildPickLists(s, threshold, fixed)
	if !ok {
		return nil, false, 0
	}
	limit := len(lists)
	if rounds < limit {
		limit = rounds
	}
	if limit < 0 {
		limit = 0
	}
	sr := &searcher{
		lists: lists,
		limit: limit,
		ways:  make([][]CardIndex, 0, limit),
		dead:  map[memoKey]bool{},
	}
	if !sr.dfs() {
		return nil, false, sr.nodes
	}
	return sr.ways, true, sr.nodes
}

func (sr *searcher) dfs() bool {
	sr.nodes++
	depth := len(sr.ways)
	if depth >= sr.limit {
		return true
	}
	key := memoKey{depth: depth, used: sr.used}
	if sr.dead[key] {
		return false
	}
	l := sr.lists[depth]
	found := false
	forEachCombination(len(l.Cards), l.Picks, func(idx []int) bool {
		var mask uint64
		for _, i := range idx {
			mask |= l.Cards[i].bit()
		}
		if mask&sr.used != 0 {
			return true
		}
		pattern := make([]CardIndex, len(idx))
		for j, i := range idx {
			pattern[j] = l.Cards[i]
		}
		sr.ways = append(sr.ways, pattern)
		sr.used |= mask
		if sr.dfs() {
			found = true
			return false
		}
		sr.used &^= mask
		sr.ways = sr.ways[:depth]
		return true
	})
	if !found {
		sr.dead[key] = true
	}
	return found
}

// forEachCombination calls fn with every k-subset of 0..n-1 in lexicographic
// order until fn returns false. idx is reused between calls.
func forEachCombination(n, k int, fn func(idx []int) bool) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
