package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"craps/internal/rules"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_RoutesByKind(t *testing.T) {
	rolls, settlements, series := &fakeWriter{}, &fakeWriter{}, &fakeWriter{}
	p := NewKafkaPublisherWithWriters(rolls, settlements, series, nil)
	ctx := context.Background()

	if err := p.PublishRoll(ctx, Roll{SeriesID: "s1", Roll: rules.MustRoll(3, 4), Outcome: rules.OutcomeNatural}); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishSettlement(ctx, Settlement{SeriesID: "s1", Stake: 100, Paid: 200}); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishSeries(ctx, SeriesStatus{SeriesID: "s1", Status: "ended"}); err != nil {
		t.Fatal(err)
	}

	for name, w := range map[string]*fakeWriter{"rolls": rolls, "settlements": settlements, "series": series} {
		if len(w.msgs) != 1 {
			t.Fatalf("%s got %d messages, want 1", name, len(w.msgs))
		}
		if string(w.msgs[0].Key) != "s1" {
			t.Errorf("%s key = %q, want s1", name, w.msgs[0].Key)
		}
	}

	var got Roll
	if err := json.Unmarshal(rolls.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Roll.Total != 7 || got.Outcome != rules.OutcomeNatural || got.TsUnixMs == 0 {
		t.Errorf("decoded roll event = %+v", got)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriters(&fakeWriter{err: boom}, &fakeWriter{}, &fakeWriter{}, nil)

	if err := p.PublishRoll(context.Background(), Roll{SeriesID: "s1"}); !errors.Is(err, boom) {
		t.Errorf("PublishRoll() error = %v, want %v", err, boom)
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	ws := []*fakeWriter{{}, {}, {}}
	p := NewKafkaPublisherWithWriters(ws[0], ws[1], ws[2], nil)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	for i, w := range ws {
		if !w.closed {
			t.Errorf("writer %d not closed", i)
		}
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.PublishRoll(ctx, Roll{SeriesID: "a"})
	_ = r.PublishSeries(ctx, SeriesStatus{SeriesID: "a", Status: "started"})

	rolls, settlements, series := r.Snapshot()
	if len(rolls) != 1 || len(settlements) != 0 || len(series) != 1 {
		t.Errorf("snapshot sizes %d/%d/%d, want 1/0/1", len(rolls), len(settlements), len(series))
	}
}
