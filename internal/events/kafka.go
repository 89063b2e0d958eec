package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topics names the topic each event kind goes to.
type Topics struct {
	Rolls       string
	Settlements string
	Series      string
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events keyed by series id, so one series stays on
// one partition and keeps its order.
type KafkaPublisher struct {
	rolls       MessageWriter
	settlements MessageWriter
	series      MessageWriter
	log         *zap.Logger
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
}

// NewKafkaPublisher builds one writer per topic. brokers is a comma separated
// list.
func NewKafkaPublisher(brokers string, topics Topics, log *zap.Logger) *KafkaPublisher {
	addrs := strings.Split(brokers, ",")
	return NewKafkaPublisherWithWriters(
		NewWriter(addrs, topics.Rolls),
		NewWriter(addrs, topics.Settlements),
		NewWriter(addrs, topics.Series),
		log,
	)
}

func NewKafkaPublisherWithWriters(rolls, settlements, series MessageWriter, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{
		rolls:       rolls,
		settlements: settlements,
		series:      series,
		log:         log.Named("events"),
	}
}

func (p *KafkaPublisher) PublishRoll(ctx context.Context, e Roll) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = now()
	}
	return p.write(ctx, p.rolls, "roll", e.SeriesID, e)
}

func (p *KafkaPublisher) PublishSettlement(ctx context.Context, e Settlement) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = now()
	}
	return p.write(ctx, p.settlements, "settlement", e.SeriesID, e)
}

func (p *KafkaPublisher) PublishSeries(ctx context.Context, e SeriesStatus) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = now()
	}
	return p.write(ctx, p.series, "series", e.SeriesID, e)
}

func (p *KafkaPublisher) write(ctx context.Context, w MessageWriter, kind, key string, e any) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish event", zap.String("kind", kind), zap.String("series_id", key), zap.Error(err))
		return fmt.Errorf("publish %s event: %w", kind, err)
	}

	p.log.Debug("published event", zap.String("kind", kind), zap.String("series_id", key))
	return nil
}

// Close closes every writer and returns the first error.
func (p *KafkaPublisher) Close() error {
	var first error
	for _, w := range []MessageWriter{p.rolls, p.settlements, p.series} {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
