package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"craps/internal/apperr"
	"craps/internal/rules"
)

const (
	DefaultHistoryLimit = 100
	keptSeries          = 64
)

// Series is one pass-line decision: from the come-out until it resolves.
type Series struct {
	ID               string        `json:"id"`
	Shooter          string        `json:"shooter"`
	HandID           string        `json:"hand_id"`
	Phase            rules.Phase   `json:"phase"`
	Point            int           `json:"point"`
	PendingRequestID string        `json:"pending_request_id,omitempty"`
	Rolls            []rules.Roll  `json:"rolls"`
	Complete         bool          `json:"complete"`
	Outcome          rules.Outcome `json:"outcome,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          time.Time     `json:"ended_at,omitempty"`
}

func (s *Series) clone() Series {
	out := *s
	out.Rolls = append([]rules.Roll(nil), s.Rolls...)
	return out
}

// StateMachine owns the table phase. It is IDLE between series, and a shooter's
// hand spans series until a seven-out.
type StateMachine struct {
	mu           sync.RWMutex
	current      *Series
	past         map[string][]rules.Roll
	pastOrder    []string
	handID       string
	handRolls    int
	historyLimit int
}

func NewStateMachine(historyLimit int) *StateMachine {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &StateMachine{
		past:         make(map[string][]rules.Roll),
		historyLimit: historyLimit,
	}
}

// Snapshot implements bets.Table.
func (sm *StateMachine) Snapshot() rules.Snapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *StateMachine) snapshotLocked() rules.Snapshot {
	if sm.current == nil || sm.current.Complete {
		return rules.Snapshot{Phase: rules.PhaseIdle, HandRolls: sm.handRolls}
	}
	return rules.Snapshot{
		SeriesID:    sm.current.ID,
		Phase:       sm.current.Phase,
		Point:       sm.current.Point,
		HandRolls:   sm.handRolls,
		RollPending: sm.current.PendingRequestID != "",
	}
}

// Current returns the latest series, finished or not.
func (sm *StateMachine) Current() (Series, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.current == nil {
		return Series{}, false
	}
	return sm.current.clone(), true
}

func (sm *StateMachine) CurrentPhase() rules.Phase {
	return sm.Snapshot().Phase
}

func (sm *StateMachine) CurrentPoint() int {
	return sm.Snapshot().Point
}

// HandID is the hand in progress, empty before the first series.
func (sm *StateMachine) HandID() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.handID
}

// RollHistory returns up to the last historyLimit rolls of seriesID, oldest
// first, or nil for a series the table no longer remembers.
func (sm *StateMachine) RollHistory(seriesID string) []rules.Roll {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.current != nil && sm.current.ID == seriesID {
		return append([]rules.Roll(nil), sm.current.Rolls...)
	}
	if rolls, ok := sm.past[seriesID]; ok {
		return append([]rules.Roll(nil), rolls...)
	}
	return nil
}

// IsBetTypeValid reports whether tag is known and its phase family is open.
func (sm *StateMachine) IsBetTypeValid(tag rules.BetType) bool {
	return rules.PhaseAllows(tag, sm.CurrentPhase())
}

// CanPlaceBet reports whether tag may be placed right now.
func (sm *StateMachine) CanPlaceBet(tag rules.BetType) bool {
	return rules.CheckPlace(tag, sm.Snapshot()) == nil
}

func (sm *StateMachine) start(shooter string) (Series, bool, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current != nil && !sm.current.Complete {
		return Series{}, false, fmt.Errorf("start series for %s: %w", shooter, apperr.ErrSeriesActive)
	}

	newHand := sm.handID == ""
	if newHand {
		sm.handID = uuid.NewString()
		sm.handRolls = 0
	}
	sm.archiveLocked()
	sm.current = &Series{
		ID:        uuid.NewString(),
		Shooter:   shooter,
		HandID:    sm.handID,
		Phase:     rules.PhaseComeOut,
		StartedAt: time.Now(),
	}
	return sm.current.clone(), newHand, nil
}

func (sm *StateMachine) setPending(requestID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	snap := sm.snapshotLocked()
	if !snap.Active() {
		return fmt.Errorf("request roll: %w", apperr.ErrNoActiveSeries)
	}
	if snap.RollPending {
		return fmt.Errorf("request roll for %s: %w", snap.SeriesID, apperr.ErrRollPending)
	}
	sm.current.PendingRequestID = requestID
	return nil
}

// clearPending drops requestID if it is still the pending one.
func (sm *StateMachine) clearPending(requestID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current != nil && sm.current.PendingRequestID == requestID {
		sm.current.PendingRequestID = ""
	}
}

// resolve computes what the roll would do without changing anything.
func (sm *StateMachine) resolve(requestID string, d1, d2 int) (rules.Transition, Series, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if err := sm.checkPendingLocked(requestID); err != nil {
		return rules.Transition{}, Series{}, err
	}
	roll, err := rules.NewRoll(d1, d2)
	if err != nil {
		return rules.Transition{}, Series{}, err
	}
	return rules.Advance(sm.current.Phase, sm.current.Point, roll), sm.current.clone(), nil
}

// commit applies a transition computed by resolve for the same request.
func (sm *StateMachine) commit(requestID string, tr rules.Transition) (Series, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.checkPendingLocked(requestID); err != nil {
		return Series{}, err
	}
	s := sm.current
	if s.Phase != tr.PhaseBefore || s.Point != tr.PointBefore {
		return Series{}, fmt.Errorf("commit %s from %s/%d at %s/%d: %w",
			tr.Roll, tr.PhaseBefore, tr.PointBefore, s.Phase, s.Point, apperr.ErrUnknownRequest)
	}

	s.PendingRequestID = ""
	s.Rolls = append(s.Rolls, tr.Roll)
	if over := len(s.Rolls) - sm.historyLimit; over > 0 {
		s.Rolls = append(s.Rolls[:0:0], s.Rolls[over:]...)
	}
	s.Phase, s.Point = tr.PhaseAfter, tr.PointAfter
	sm.handRolls++

	if tr.Ends() {
		s.Complete = true
		s.Outcome = tr.Outcome
		s.EndedAt = time.Now()
	}
	if tr.SevenOut() {
		sm.endHandLocked()
	}
	return s.clone(), nil
}

// abort ends the active series without a roll and ends the hand.
func (sm *StateMachine) abort() (Series, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil || sm.current.Complete {
		return Series{}, fmt.Errorf("abort: %w", apperr.ErrNoActiveSeries)
	}
	s := sm.current
	s.PendingRequestID = ""
	s.Phase, s.Point = rules.PhaseIdle, 0
	s.Complete = true
	s.Outcome = rules.OutcomeAborted
	s.EndedAt = time.Now()
	sm.endHandLocked()
	return s.clone(), nil
}

func (sm *StateMachine) checkPendingLocked(requestID string) error {
	switch {
	case sm.current == nil || sm.current.Complete:
		return fmt.Errorf("fulfil %s with no active series: %w", requestID, apperr.ErrUnknownRequest)
	case requestID == "" || sm.current.PendingRequestID != requestID:
		return fmt.Errorf("fulfil %s, pending %q: %w", requestID, sm.current.PendingRequestID, apperr.ErrUnknownRequest)
	}
	return nil
}

func (sm *StateMachine) endHandLocked() {
	sm.handID = ""
	sm.handRolls = 0
}

func (sm *StateMachine) archiveLocked() {
	if sm.current == nil {
		return
	}
	sm.past[sm.current.ID] = sm.current.Rolls
	sm.pastOrder = append(sm.pastOrder, sm.current.ID)
	if len(sm.pastOrder) > keptSeries {
		delete(sm.past, sm.pastOrder[0])
		sm.pastOrder = sm.pastOrder[1:]
	}
}
