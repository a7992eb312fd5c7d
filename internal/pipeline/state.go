package pipeline

import (
	"fmt"
	"time"

	"github.com/ppiankov/claimcheck/internal/apperr"
)

// State is a step of the per-claim state machine
type State string

const (
	StateReceived         State = "received"
	StateDecomposed       State = "decomposed"
	StateVerified         State = "verified"
	StateEvidenceGathered State = "evidence_gathered"
	StateSynthesized      State = "synthesized"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// next lists the forward transition of each non-terminal state.
// Decomposed may jump to Completed when the claim is rejected.
var next = map[State][]State{
	StateReceived:         {StateDecomposed},
	StateDecomposed:       {StateVerified, StateCompleted},
	StateVerified:         {StateEvidenceGathered},
	StateEvidenceGathered: {StateSynthesized},
	StateSynthesized:      {StateCompleted},
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition is one recorded state change
type Transition struct {
	From   State       `json:"from"`
	To     State       `json:"to"`
	At     time.Time   `json:"at"`
	Reason apperr.Kind `json:"reason,omitempty"` // Set when To is failed
}

// Run tracks one claim through the state machine
type Run struct {
	ID      string
	State   State
	Failure apperr.Kind
	History []Transition

	now func() time.Time
}

func newRun(id string, now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{ID: id, State: StateReceived, now: now}
}

// advance moves to the next state; anything off the forward path is a bug
func (r *Run) advance(to State) error {
	for _, allowed := range next[r.State] {
		if allowed == to {
			r.record(to, "")
			return nil
		}
	}
	return apperr.New(apperr.KindPipeline, "pipeline.state",
		fmt.Sprintf("illegal transition %s -> %s", r.State, to))
}

// fail moves to the failed state from any non-terminal state
func (r *Run) fail(kind apperr.Kind) {
	if r.State.Terminal() {
		return
	}
	r.Failure = kind
	r.record(StateFailed, kind)
}

func (r *Run) record(to State, reason apperr.Kind) {
	r.History = append(r.History, Transition{
		From:   r.State,
		To:     to,
		At:     r.now().UTC(),
		Reason: reason,
	})
	r.State = to
}
