package settlement

import (
	"math/bits"
	"sync"

	"craps/internal/rules"
)

const (
	smallMask = 1<<2 | 1<<3 | 1<<4 | 1<<5 | 1<<6
	tallMask  = 1<<8 | 1<<9 | 1<<10 | 1<<11 | 1<<12
	hardMask  = 1<<4 | 1<<6 | 1<<8 | 1<<10
)

// HandState counts what has rolled in the current shooter's hand. A hand runs
// across series until a seven-out.
type HandState struct {
	Rolls      int     `json:"rolls"`
	Counts     [13]int `json:"counts"`
	Seen       uint16  `json:"seen"`
	HardHit    uint16  `json:"hard_hit"`
	PointsMade uint16  `json:"points_made"`
}

// Apply returns the state after tr.
func (h HandState) Apply(tr rules.Transition) HandState {
	total := tr.Roll.Total
	h.Rolls++
	h.Counts[total]++
	h.Seen |= 1 << total
	if tr.Roll.IsHard() && hardMask&(1<<total) != 0 {
		h.HardHit |= 1 << total
	}
	if tr.Outcome == rules.OutcomePointMade {
		h.PointsMade |= 1 << tr.PointBefore
	}
	return h
}

// UniquePointsMade is how many different points the shooter has made.
func (h HandState) UniquePointsMade() int {
	return bits.OnesCount16(h.PointsMade)
}

func (h HandState) SeenAll(mask uint16) bool {
	return h.Seen&mask == mask
}

// tracker keeps the counters of the hand in progress. Callers compute the next
// state with next and only store it once the roll has settled.
type tracker struct {
	mu     sync.Mutex
	handID string
	state  HandState
}

func (t *tracker) current(handID string) HandState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handID != handID {
		return HandState{}
	}
	return t.state
}

func (t *tracker) next(handID string, tr rules.Transition) HandState {
	return t.current(handID).Apply(tr)
}

func (t *tracker) commit(handID string, state HandState, ended bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ended {
		t.handID, t.state = "", HandState{}
		return
	}
	t.handID, t.state = handID, state
}
