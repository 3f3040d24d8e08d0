package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

const defaultShards = 16

type entry struct {
	result    models.CurationResult
	expiresAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Memory is a sharded in-process cache. Each shard has its own lock and a
// background sweeper drops expired entries.
type Memory struct {
	shards []*shard
	now    func() time.Time
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMemory creates a cache with the given shard count and sweep interval.
// A non-positive interval disables the sweeper; expired entries are still
// never returned.
func NewMemory(shards int, sweepInterval time.Duration) *Memory {
	if shards <= 0 {
		shards = defaultShards
	}
	m := &Memory{
		shards: make([]*shard, shards),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]entry)}
	}
	if sweepInterval > 0 {
		go m.sweep(sweepInterval)
	} else {
		close(m.done)
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (m *Memory) Get(_ context.Context, key string) (models.CurationResult, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		return models.CurationResult{}, false
	}
	return e.result.Clone(), true
}

func (m *Memory) Put(_ context.Context, key string, result models.CurationResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s := m.shardFor(key)
	e := entry{result: result.Clone(), expiresAt: m.now().Add(ttl)}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len counts live and not yet swept entries.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Close stops the sweeper and waits for it to exit.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

func (m *Memory) sweep(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.purgeExpired(); n > 0 {
				log.WithField("evicted", n).Debug("cache sweep")
			}
		}
	}
}

func (m *Memory) purgeExpired() int {
	now := m.now()
	evicted := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}
