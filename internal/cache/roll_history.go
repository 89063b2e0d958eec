package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"craps/internal/rules"
)

const rollsPrefix = "craps:rolls:"

// RollHistory mirrors the last rolls of each series into a capped Redis list,
// oldest first.
type RollHistory struct {
	client redis.Cmdable
	limit  int64
	ttl    time.Duration
}

func NewRollHistory(client redis.Cmdable, limit int, ttl time.Duration) *RollHistory {
	if limit <= 0 {
		limit = 100
	}
	return &RollHistory{client: client, limit: int64(limit), ttl: ttl}
}

func (h *RollHistory) PushRoll(ctx context.Context, seriesID string, roll rules.Roll) error {
	raw, err := json.Marshal(roll)
	if err != nil {
		return err
	}
	key := rollsPrefix + seriesID

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, raw)
		pipe.LTrim(ctx, key, -h.limit, -1)
		if h.ttl > 0 {
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push roll for %s: %w", seriesID, err)
	}
	return nil
}

// Recent returns the mirrored rolls for seriesID, oldest first.
func (h *RollHistory) Recent(ctx context.Context, seriesID string) ([]rules.Roll, error) {
	items, err := h.client.LRange(ctx, rollsPrefix+seriesID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent rolls for %s: %w", seriesID, err)
	}
	rolls := make([]rules.Roll, 0, len(items))
	for _, item := range items {
		var r rules.Roll
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode roll for %s: %w", seriesID, err)
		}
		rolls = append(rolls, r)
	}
	return rolls, nil
}
