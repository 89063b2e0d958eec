package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"craps/internal/access"
	"craps/internal/apperr"
	"craps/internal/bets"
	"craps/internal/events"
	"craps/internal/metrics"
	"craps/internal/rules"
	"craps/internal/settlement"
	"craps/internal/vault"
)

// RollArchive mirrors roll history outside the process.
type RollArchive interface {
	PushRoll(ctx context.Context, seriesID string, roll rules.Roll) error
}

// Recorder persists finished series and settled rolls.
type Recorder interface {
	RecordSeries(ctx context.Context, s Series) error
	RecordSettlement(ctx context.Context, s Series, tr rules.Transition, res settlement.BatchResult) error
}

// Deps are the collaborators of a Manager. Table, Ledger, Settler, Vault, RNG
// and ACL are required; the rest may be nil.
type Deps struct {
	Table    *StateMachine
	Ledger   *bets.Ledger
	Settler  *settlement.Engine
	Vault    *vault.Vault
	RNG      RandomnessPort
	ACL      *access.Control
	Hub      Broadcaster
	Events   events.Publisher
	Recorder Recorder
	Archive  RollArchive
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// Manager runs the table. It is the only path that moves the state machine and
// the only receiver of randomness callbacks.
type Manager struct {
	mu sync.Mutex

	table    *StateMachine
	ledger   *bets.Ledger
	settler  *settlement.Engine
	vault    *vault.Vault
	rng      RandomnessPort
	acl      *access.Control
	hub      Broadcaster
	events   events.Publisher
	recorder Recorder
	archive  RollArchive
	log      *zap.Logger
	metrics  *metrics.Metrics

	parked      *Fulfilment
	fulfilments chan Fulfilment
	stopChan    chan struct{}
	stopOnce    sync.Once
}

func NewManager(d Deps) *Manager {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	return &Manager{
		table:       d.Table,
		ledger:      d.Ledger,
		settler:     d.Settler,
		vault:       d.Vault,
		rng:         d.RNG,
		acl:         d.ACL,
		hub:         d.Hub,
		events:      d.Events,
		recorder:    d.Recorder,
		archive:     d.Archive,
		log:         d.Log.Named("table"),
		metrics:     d.Metrics,
		fulfilments: make(chan Fulfilment, 64),
		stopChan:    make(chan struct{}),
	}
}

// Start drains randomness callbacks until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	go m.fulfilmentLoop(ctx)
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Manager) fulfilmentLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			m.log.Info("fulfilment loop stopped")
			return
		case f := <-m.fulfilments:
			if err := m.OnRollFulfilled(ctx, f.RequestID, f.Die1, f.Die2); err != nil {
				m.log.Error("roll not applied", zap.String("request_id", f.RequestID), zap.Error(err))
			}
		}
	}
}

// Fulfil implements Fulfiller. It queues the dice for the fulfilment loop.
func (m *Manager) Fulfil(requestID string, die1, die2 int) {
	select {
	case m.fulfilments <- Fulfilment{RequestID: requestID, Die1: die1, Die2: die2}:
	case <-m.stopChan:
		m.log.Warn("fulfilment after stop", zap.String("request_id", requestID))
	}
}

func (m *Manager) Table() *StateMachine { return m.table }

func (m *Manager) Ledger() *bets.Ledger { return m.ledger }

func (m *Manager) Vault() *vault.Vault { return m.vault }

// State is the table read model.
func (m *Manager) State() TableState {
	m.mu.Lock()
	parked := m.parked
	m.mu.Unlock()

	snap := m.table.Snapshot()
	st := TableState{
		Phase:       snap.Phase,
		Point:       snap.Point,
		HandID:      m.table.HandID(),
		HandRolls:   snap.HandRolls,
		RollPending: snap.RollPending,
		Limits:      m.ledger.Limits(),
		Vault:       m.vault.State(),
	}
	if s, ok := m.table.Current(); ok {
		st.Series = &s
	}
	if st.HandID != "" {
		st.Hand = m.settler.Hand(st.HandID)
	}
	if parked != nil {
		p := *parked
		st.Parked = &p
	}
	return st
}

// StartNewSeries opens a come-out for shooter.
func (m *Manager) StartNewSeries(ctx context.Context, shooter string) (Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, newHand, err := m.table.start(shooter)
	if err != nil {
		return Series{}, err
	}

	m.log.Info("series started",
		zap.String("series_id", s.ID),
		zap.String("shooter", shooter),
		zap.String("hand_id", s.HandID),
		zap.Bool("new_hand", newHand))

	m.publishSeries(ctx, s, "started")
	m.broadcast(MsgSeriesStarted, s)
	return s, nil
}

// RequestRoll asks the randomness port for the next roll of the active series.
// Operator only.
func (m *Manager) RequestRoll(ctx context.Context, caller string) (string, error) {
	if err := m.acl.Require(caller, access.RoleOperator); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.table.Snapshot()
	if !snap.Active() {
		return "", fmt.Errorf("request roll: %w", apperr.ErrNoActiveSeries)
	}
	if snap.RollPending {
		return "", fmt.Errorf("request roll for %s: %w", snap.SeriesID, apperr.ErrRollPending)
	}

	requestID, err := m.rng.RequestRoll(ctx, snap.SeriesID)
	if err != nil {
		return "", fmt.Errorf("request roll for %s: %w", snap.SeriesID, err)
	}
	if err := m.table.setPending(requestID); err != nil {
		return "", err
	}

	m.log.Debug("roll requested", zap.String("series_id", snap.SeriesID), zap.String("request_id", requestID))
	return requestID, nil
}

// OnRollFulfilled applies a delivered roll: settle every bet, then move the
// phase. A callback for an unknown, stale or aborted request is ignored. If
// settlement fails nothing changes and the roll is parked for RetrySettlement.
func (m *Manager) OnRollFulfilled(ctx context.Context, requestID string, die1, die2 int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, s, err := m.table.resolve(requestID, die1, die2)
	if errors.Is(err, apperr.ErrUnknownRequest) {
		m.log.Info("ignoring fulfilment", zap.String("request_id", requestID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = m.applyLocked(ctx, Fulfilment{RequestID: requestID, Die1: die1, Die2: die2}, tr, s)
	return err
}

// RetrySettlement replays a parked roll. Operator only.
func (m *Manager) RetrySettlement(ctx context.Context, caller string) (settlement.BatchResult, error) {
	if err := m.acl.Require(caller, access.RoleOperator); err != nil {
		return settlement.BatchResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.parked == nil {
		return settlement.BatchResult{}, fmt.Errorf("retry settlement: nothing parked: %w", apperr.ErrUnknownRequest)
	}
	f := *m.parked
	tr, s, err := m.table.resolve(f.RequestID, f.Die1, f.Die2)
	if err != nil {
		m.parked = nil
		m.metrics.SetParked(0)
		return settlement.BatchResult{}, err
	}
	return m.applyLocked(ctx, f, tr, s)
}

// AbortSeries ends the active series, pushes every open bet back to its owner
// and ends the hand. Admin only. A roll still in flight is ignored on arrival.
func (m *Manager) AbortSeries(ctx context.Context, caller string) (Series, error) {
	if err := m.acl.Require(caller, access.RoleAdmin); err != nil {
		return Series{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.table.Current()
	if !ok || cur.Complete {
		return Series{}, fmt.Errorf("abort: %w", apperr.ErrNoActiveSeries)
	}

	res, err := m.settler.RefundAll(ctx, cur.HandID)
	if err != nil {
		return Series{}, fmt.Errorf("abort %s: %w", cur.ID, err)
	}
	s, err := m.table.abort()
	if err != nil {
		return Series{}, err
	}
	m.parked = nil
	m.metrics.SetParked(0)
	m.metrics.ObserveRoll(string(rules.OutcomeAborted))

	m.log.Warn("series aborted",
		zap.String("series_id", s.ID),
		zap.String("by", caller),
		zap.Int("refunded", len(res.Lines)),
		zap.Int64("amount", res.Paid))

	m.publishSeries(ctx, s, "ended")
	m.record(ctx, s, nil, res)
	m.broadcast(MsgSettlement, SettlementMessage{SeriesID: s.ID, Lines: res.Lines, Stake: res.Stake, Paid: res.Paid})
	m.broadcast(MsgSeriesEnded, s)
	return s, nil
}

// PlaceBet places a wager against the current series.
func (m *Manager) PlaceBet(ctx context.Context, player string, tag rules.BetType, amount int64, target int) (bets.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.ledger.PlaceBet(ctx, player, tag, amount, target)
	if err != nil {
		return bets.Bet{}, err
	}
	m.broadcast(MsgBetPlaced, BetMessage{Player: player, Type: tag, Amount: amount, Target: b.Target, BetID: b.ID})
	return b, nil
}

func (m *Manager) RemoveBet(ctx context.Context, player string, tag rules.BetType) (bets.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.ledger.RemoveBet(ctx, player, tag)
	if err != nil {
		return bets.Bet{}, err
	}
	m.broadcast(MsgBetRemoved, BetMessage{Player: player, Type: tag, Amount: b.Amount, Target: b.Target, BetID: b.ID})
	return b, nil
}

// Parked returns the roll waiting for settlement, if any.
func (m *Manager) Parked() (Fulfilment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parked == nil {
		return Fulfilment{}, false
	}
	return *m.parked, true
}
