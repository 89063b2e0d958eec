package game

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"craps/internal/apperr"
	"craps/internal/events"
	"craps/internal/rules"
	"craps/internal/settlement"
)

// applyLocked settles tr and, only if that succeeds, commits it to the table.
func (m *Manager) applyLocked(ctx context.Context, f Fulfilment, tr rules.Transition, before Series) (settlement.BatchResult, error) {
	res, err := m.settler.Settle(ctx, settlement.Input{HandID: before.HandID, Transition: tr})
	if err != nil {
		m.parked = &f
		m.metrics.SetParked(1)
		m.log.Error("roll parked",
			zap.String("series_id", before.ID),
			zap.String("request_id", f.RequestID),
			zap.String("roll", tr.Roll.String()),
			zap.Error(err))
		m.broadcast(MsgSettlementStalled, f)
		return settlement.BatchResult{}, fmt.Errorf("%w: %w", apperr.ErrSettlementStall, err)
	}

	s, err := m.table.commit(f.RequestID, tr)
	if err != nil {
		// Unreachable while m.mu is held across resolve and commit.
		return settlement.BatchResult{}, err
	}
	m.parked = nil
	m.metrics.SetParked(0)
	m.metrics.ObserveRoll(string(tr.Outcome))

	m.log.Info("roll applied",
		zap.String("series_id", s.ID),
		zap.String("roll", tr.Roll.String()),
		zap.String("phase", string(s.Phase)),
		zap.Int("point", s.Point),
		zap.String("outcome", string(tr.Outcome)),
		zap.Int64("stake", res.Stake),
		zap.Int64("paid", res.Paid))

	if m.archive != nil {
		if err := m.archive.PushRoll(ctx, s.ID, tr.Roll); err != nil {
			m.log.Warn("roll history not mirrored", zap.String("series_id", s.ID), zap.Error(err))
		}
	}

	m.publish("roll", m.events.PublishRoll(ctx, events.Roll{
		SeriesID:   s.ID,
		HandID:     s.HandID,
		RequestID:  f.RequestID,
		Roll:       tr.Roll,
		PhaseAfter: tr.PhaseAfter,
		PointAfter: tr.PointAfter,
		Outcome:    tr.Outcome,
	}))
	m.publish("settlement", m.events.PublishSettlement(ctx, events.Settlement{
		SeriesID:   s.ID,
		HandID:     s.HandID,
		Total:      tr.Roll.Total,
		Decided:    len(res.Lines),
		Stake:      res.Stake,
		Paid:       res.Paid,
		AssetDelta: res.Report.AssetDelta,
		FeeAccrued: res.Report.FeeAccrued,
	}))
	m.record(ctx, s, &tr, res)

	m.broadcast(MsgRoll, RollMessage{
		SeriesID:   s.ID,
		Roll:       tr.Roll,
		PhaseAfter: tr.PhaseAfter,
		PointAfter: tr.PointAfter,
		Outcome:    tr.Outcome,
	})
	if len(res.Lines) > 0 {
		m.broadcast(MsgSettlement, SettlementMessage{SeriesID: s.ID, Lines: res.Lines, Stake: res.Stake, Paid: res.Paid})
	}
	if s.Complete {
		m.publishSeries(ctx, s, "ended")
		m.broadcast(MsgSeriesEnded, s)
	}
	return res, nil
}

// record persists the settlement (when tr is set) and, for a finished series,
// the series itself. Failures are logged; the table has already moved.
func (m *Manager) record(ctx context.Context, s Series, tr *rules.Transition, res settlement.BatchResult) {
	if m.recorder == nil {
		return
	}
	if tr != nil {
		if err := m.recorder.RecordSettlement(ctx, s, *tr, res); err != nil {
			m.log.Warn("settlement not recorded", zap.String("series_id", s.ID), zap.Error(err))
		}
	}
	if s.Complete {
		if err := m.recorder.RecordSeries(ctx, s); err != nil {
			m.log.Warn("series not recorded", zap.String("series_id", s.ID), zap.Error(err))
		}
	}
}

func (m *Manager) publishSeries(ctx context.Context, s Series, status string) {
	m.publish("series", m.events.PublishSeries(ctx, events.SeriesStatus{
		SeriesID: s.ID,
		HandID:   s.HandID,
		Shooter:  s.Shooter,
		Status:   status,
		Outcome:  s.Outcome,
	}))
}

func (m *Manager) publish(kind string, err error) {
	if err != nil {
		m.log.Warn("event not published", zap.String("kind", kind), zap.Error(err))
	}
}

func (m *Manager) broadcast(kind string, data any) {
	if m.hub != nil {
		m.hub.Broadcast(WSMessage{Type: kind, Data: data})
	}
}
