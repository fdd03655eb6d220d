package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store and the locker.
const DefaultPrefix = "chatflow:"

// maxTxRetries bounds optimistic transaction retries under contention.
const maxTxRetries = 64

// Store implements ports.FlowRepository using Redis.
//
// Layout: <prefix>flow:<id> holds the flow JSON, <prefix>index is a sorted set
// scored by creation time and <prefix>active holds the active flow id.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(id string) string {
	return s.prefix + "flow:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) activeKey() string {
	return s.prefix + "active"
}

// List returns all flows in index order.
func (s *Store) List(ctx context.Context) ([]*domain.Flow, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Flow{}, nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.activeKey())

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}

	active, _ := vals[len(vals)-1].(string)
	flows := make([]*domain.Flow, 0, len(ids))
	for i := range ids {
		raw, ok := vals[i].(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		f, err := decode(raw)
		if err != nil {
			return nil, err
		}
		f.IsActive = f.ID == active
		flows = append(flows, f)
	}

	memory.SortFlows(flows)
	return flows, nil
}

// Get retrieves a flow from Redis.
func (s *Store) Get(ctx context.Context, id string) (*domain.Flow, error) {
	vals, err := s.client.MGet(ctx, s.key(id), s.activeKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
	}
	f, err := decode(raw)
	if err != nil {
		return nil, err
	}
	active, _ := vals[1].(string)
	f.IsActive = f.ID == active
	return f, nil
}

// Put persists the flow and indexes it by creation time.
func (s *Store) Put(ctx context.Context, flow *domain.Flow) error {
	stored := *flow
	stored.IsActive = false
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(flow.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(flow.CreatedAt.UnixMilli()),
		Member: flow.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the flow and clears the active pointer when it referenced it.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.retry(ctx, func(tx *backend.Tx) error {
		exists, err := tx.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
		}

		active, err := tx.Get(ctx, s.activeKey()).Result()
		if err != nil && !errors.Is(err, backend.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Del(ctx, s.key(id))
			pipe.ZRem(ctx, s.indexKey(), id)
			if active == id {
				pipe.Del(ctx, s.activeKey())
			}
			return nil
		})
		return err
	}, s.key(id), s.activeKey())
}

// ActiveID returns the active flow id.
func (s *Store) ActiveID(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.activeKey()).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active flow: %w", err)
	}
	return id, nil
}

// Activate swaps the active pointer with a WATCH/MULTI compare-and-swap.
// The transaction aborts if the flow or the pointer changes while guard runs.
func (s *Store) Activate(ctx context.Context, id string, guard ports.ActivationGuard) error {
	return s.retry(ctx, func(tx *backend.Tx) error {
		raw, err := tx.Get(ctx, s.key(id)).Result()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
			}
			return err
		}

		f, err := decode(raw)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(f); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, s.activeKey(), id, 0)
			return nil
		})
		return err
	}, s.key(id), s.activeKey())
}

// retry runs fn in an optimistic transaction, retrying when a watched key changed.
func (s *Store) retry(ctx context.Context, fn func(*backend.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, backend.TxFailedErr) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Millisecond):
		}
	}
	return fmt.Errorf("redis transaction on %v: %w", keys, backend.TxFailedErr)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(raw string) (*domain.Flow, error) {
	var f domain.Flow
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
	}
	return &f, nil
}
