// Package notification implements the Notification participant: best-
// effort user messaging with per-(orderId, category) dedup.
package notification

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Category is one of the four notification kinds the saga produces.
type Category string

const (
	CategorySuccess   Category = "SUCCESS"
	CategoryFailure   Category = "FAILURE"
	CategoryCancelled Category = "CANCELLED"
	CategoryRefund    Category = "REFUND"
)

// DedupStore remembers which (orderId, category) pairs have already
// been dispatched, so redelivery never re-sends.
type DedupStore interface {
	// MarkIfAbsent returns true if (orderID, category) was not
	// previously marked and is now marked by this call; false if it
	// was already present.
	MarkIfAbsent(ctx context.Context, orderID string, category Category) (bool, error)
}

// InMemoryDedupStore is the default Store: a process-local set.
// Restarting the process re-enables resending, an accepted trade-off
// unless the persistent RedisDedupStore below is configured.
type InMemoryDedupStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDedupStore returns an empty in-memory dedup set.
func NewInMemoryDedupStore() *InMemoryDedupStore {
	return &InMemoryDedupStore{seen: make(map[string]struct{})}
}

func (s *InMemoryDedupStore) MarkIfAbsent(ctx context.Context, orderID string, category Category) (bool, error) {
	key := dedupKey(orderID, category)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

// RedisDedupStore persists dedup keys in Redis via SETNX, surviving
// process restarts, resolving the design note's open suggestion of a
// persistent dedup alternative.
type RedisDedupStore struct {
	client *redis.Client
}

// NewRedisDedupStore wraps an existing go-redis client. The caller
// owns the client's lifecycle.
func NewRedisDedupStore(client *redis.Client) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

func (s *RedisDedupStore) MarkIfAbsent(ctx context.Context, orderID string, category Category) (bool, error) {
	key := "notification:dedup:" + dedupKey(orderID, category)
	ok, err := s.client.SetNX(ctx, key, 1, 0).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func dedupKey(orderID string, category Category) string {
	return orderID + "|" + string(category)
}
