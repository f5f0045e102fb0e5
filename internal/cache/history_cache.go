package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"campusrag/internal/model"
)

// generationTTL outlives any read-then-write window of a history request.
const generationTTL = 24 * time.Hour

// HistoryCache keeps recent chat history per user in a Redis hash whose
// fields are the requested page sizes, so one delete drops every cached view.
// A per-user generation counter, bumped on every invalidation, keeps a reader
// from writing back a list loaded before the newest message.
type HistoryCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewHistoryCache(client *redisv9.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &HistoryCache{client: client, ttl: ttl}
}

// Get returns the cached history, the user's current generation and whether
// the history was present. The generation is handed back to Set.
func (c *HistoryCache) Get(ctx context.Context, userID uint, limit int) ([]model.Message, int64, bool, error) {
	pipe := c.client.Pipeline()
	genCmd := pipe.Get(ctx, generationKey(userID))
	viewCmd := pipe.HGet(ctx, historyKey(userID), strconv.Itoa(limit))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redisv9.Nil) {
		return nil, 0, false, fmt.Errorf("redis get history failed: %w", err)
	}

	generation, err := readGeneration(genCmd)
	if err != nil {
		return nil, 0, false, err
	}
	raw, err := viewCmd.Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, generation, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, generation, true, nil
}

// Set stores one view of the history if the user's generation still equals
// generation. A stale write is dropped without error.
func (c *HistoryCache) Set(ctx context.Context, userID uint, limit int, generation int64, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}

	key, genKey := historyKey(userID), generationKey(userID)
	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := readGeneration(tx.Get(ctx, genKey))
		if err != nil {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.Itoa(limit), payload)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, errStaleGeneration) || errors.Is(err, redisv9.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached view of the user's history and moves the
// generation on so in-flight readers cannot restore them.
func (c *HistoryCache) Invalidate(ctx context.Context, userID uint) error {
	genKey := generationKey(userID)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, historyKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

var errStaleGeneration = errors.New("history generation moved")

func readGeneration(cmd *redisv9.StringCmd) (int64, error) {
	generation, err := cmd.Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get history generation failed: %w", err)
	}
	return generation, nil
}

func historyKey(userID uint) string {
	return fmt.Sprintf("chat:history:%d", userID)
}

func generationKey(userID uint) string {
	return fmt.Sprintf("chat:history:%d:gen", userID)
}
