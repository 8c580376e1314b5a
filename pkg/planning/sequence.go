package planning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out increasing tickets per logical slot. A response is
// current only while its ticket is the newest one issued for the slot, so
// a newer request supersedes an older one without cancelling it.
type Sequencer interface {
	Next(ctx context.Context, slot string) (uint64, error)
	Current(ctx context.Context, slot string) (uint64, error)
}

type MemorySequencer struct {
	mu    sync.Mutex
	slots map[string]uint64
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{slots: make(map[string]uint64)}
}

func (m *MemorySequencer) Next(_ context.Context, slot string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot]++
	return m.slots[slot], nil
}

func (m *MemorySequencer) Current(_ context.Context, slot string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot], nil
}

// RedisSequencer shares slot tickets between gateway replicas.
type RedisSequencer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSequencer(client *redis.Client, ttl time.Duration) *RedisSequencer {
	return &RedisSequencer{client: client, prefix: "planner:slot:", ttl: ttl}
}

func (r *RedisSequencer) key(slot string) string {
	return r.prefix + slot
}

func (r *RedisSequencer) Next(ctx context.Context, slot string) (uint64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, r.key(slot))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(slot), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("issue ticket for slot %q: %w", slot, err)
	}
	return uint64(incr.Val()), nil
}

func (r *RedisSequencer) Current(ctx context.Context, slot string) (uint64, error) {
	val, err := r.client.Get(ctx, r.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ticket for slot %q: %w", slot, err)
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt ticket for slot %q: %w", slot, err)
	}
	return n, nil
}

// Slot keeps the value of the newest request issued for one logical slot.
// Values delivered with a superseded ticket are dropped.
type Slot[T any] struct {
	name string
	seq  Sequencer

	mu     sync.Mutex
	ticket uint64
	value  T
	has    bool
}

func NewSlot[T any](name string, seq Sequencer) *Slot[T] {
	return &Slot[T]{name: name, seq: seq}
}

// Issue registers a new request for the slot.
func (s *Slot[T]) Issue(ctx context.Context) (uint64, error) {
	return s.seq.Next(ctx, s.name)
}

// Deliver stores v if ticket is still the newest issued. It reports
// whether v was accepted.
func (s *Slot[T]) Deliver(ctx context.Context, ticket uint64, v T) (bool, error) {
	current, err := s.seq.Current(ctx, s.name)
	if err != nil {
		return false, err
	}
	if ticket != current {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket <= s.ticket && s.has {
		return false, nil
	}
	s.ticket = ticket
	s.value = v
	s.has = true
	return true, nil
}

// Value returns the last accepted value.
func (s *Slot[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}
