package engine

import "fmt"

// PairState is the run state of one (scene, glacier) pair. Committed,
// Skipped and Failed are terminal; only Committed is persisted (as the
// result row itself), the rest surface through logs and metrics.
type PairState int

const (
	PairUnprocessed PairState = iota
	PairEligible
	PairSkipped
	PairComputed
	PairCommitted
	PairFailed
)

func (s PairState) String() string {
	switch s {
	case PairUnprocessed:
		return "unprocessed"
	case PairEligible:
		return "eligible"
	case PairSkipped:
		return "skipped"
	case PairComputed:
		return "computed"
	case PairCommitted:
		return "committed"
	case PairFailed:
		return "failed"
	default:
		return fmt.Sprintf("PairState(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s PairState) Terminal() bool {
	switch s {
	case PairSkipped, PairCommitted, PairFailed:
		return true
	}
	return false
}

var pairTransitions = map[PairState][]PairState{
	PairUnprocessed: {PairEligible, PairSkipped},
	PairEligible:    {PairComputed, PairFailed},
	PairComputed:    {PairCommitted, PairFailed},
}

// Pair tracks the state machine for one (scene, glacier) key.
type Pair struct {
	SceneID   string
	GlacierID string
	state     PairState
}

// NewPair starts a pair in the unprocessed state.
func NewPair(sceneID, glacierID string) *Pair {
	return &Pair{SceneID: sceneID, GlacierID: glacierID}
}

// State returns the current state.
func (p *Pair) State() PairState {
	return p.state
}

// To transitions the pair, rejecting moves the state machine does not
// allow.
func (p *Pair) To(next PairState) error {
	for _, allowed := range pairTransitions[p.state] {
		if allowed == next {
			p.state = next
			return nil
		}
	}
	return fmt.Errorf("pair %s/%s: illegal transition %s -> %s", p.SceneID, p.GlacierID, p.state, next)
}
