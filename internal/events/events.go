// Package events publishes what happens at the table for downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"craps/internal/rules"
)

// Roll is emitted for every finalized roll, before settlement.
type Roll struct {
	SeriesID   string        `json:"series_id"`
	HandID     string        `json:"hand_id"`
	RequestID  string        `json:"request_id"`
	Roll       rules.Roll    `json:"roll"`
	PhaseAfter rules.Phase   `json:"phase_after"`
	PointAfter int           `json:"point_after"`
	Outcome    rules.Outcome `json:"outcome,omitempty"`
	TsUnixMs   int64         `json:"ts_unix_ms"`
}

// Settlement sums one settled roll.
type Settlement struct {
	SeriesID   string `json:"series_id"`
	HandID     string `json:"hand_id"`
	Total      int    `json:"total"`
	Decided    int    `json:"decided"`
	Stake      int64  `json:"stake"`
	Paid       int64  `json:"paid"`
	AssetDelta int64  `json:"asset_delta"`
	FeeAccrued int64  `json:"fee_accrued"`
	TsUnixMs   int64  `json:"ts_unix_ms"`
}

// SeriesStatus is a series lifecycle change.
type SeriesStatus struct {
	SeriesID string        `json:"series_id"`
	HandID   string        `json:"hand_id"`
	Shooter  string        `json:"shooter"`
	Status   string        `json:"status"` // started, ended
	Outcome  rules.Outcome `json:"outcome,omitempty"`
	TsUnixMs int64         `json:"ts_unix_ms"`
}

type Publisher interface {
	PublishRoll(ctx context.Context, e Roll) error
	PublishSettlement(ctx context.Context, e Settlement) error
	PublishSeries(ctx context.Context, e SeriesStatus) error
	Close() error
}

func now() int64 { return time.Now().UnixMilli() }

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishRoll(context.Context, Roll) error             { return nil }
func (NopPublisher) PublishSettlement(context.Context, Settlement) error { return nil }
func (NopPublisher) PublishSeries(context.Context, SeriesStatus) error   { return nil }
func (NopPublisher) Close() error                                        { return nil }

// Recorder keeps every event in memory.
type Recorder struct {
	mu          sync.Mutex
	Rolls       []Roll
	Settlements []Settlement
	Series      []SeriesStatus
}

func (r *Recorder) PublishRoll(_ context.Context, e Roll) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Rolls = append(r.Rolls, e)
	return nil
}

func (r *Recorder) PublishSettlement(_ context.Context, e Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Settlements = append(r.Settlements, e)
	return nil
}

func (r *Recorder) PublishSeries(_ context.Context, e SeriesStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Series = append(r.Series, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Snapshot returns copies of everything recorded so far.
func (r *Recorder) Snapshot() ([]Roll, []Settlement, []SeriesStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Roll(nil), r.Rolls...),
		append([]Settlement(nil), r.Settlements...),
		append([]SeriesStatus(nil), r.Series...)
}
