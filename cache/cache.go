// Package cache implements the C3 cache service: a bytes-valued in-memory
// cache keyed by namespace+key, with per-entry TTL or TTI expiry and a
// race-safe lazy-init accessor.
package cache

import (
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/xiaoyuanxun/anda-sub000/errs"
)

// DefaultMaxCapacity and MaxIdle match spec.md §4.3.
const (
	DefaultMaxCapacity = 1_000_000
	MaxIdle            = 7 * 24 * time.Hour
)

// ExpiryKind discriminates TTL ("time to live", counted from write) from TTI
// ("time to idle", reset on every access).
type ExpiryKind int

const (
	ExpiryNone ExpiryKind = iota
	ExpiryTTL
	ExpiryTTI
)

// Expiry is attached to a cache entry at Set time.
type Expiry struct {
	Kind ExpiryKind
	TTL  time.Duration
}

func TTL(d time.Duration) Expiry { return Expiry{Kind: ExpiryTTL, TTL: clampIdle(d)} }
func TTI(d time.Duration) Expiry { return Expiry{Kind: ExpiryTTI, TTL: clampIdle(d)} }

func clampIdle(d time.Duration) time.Duration {
	if d > MaxIdle {
		return MaxIdle
	}
	return d
}

type entry struct {
	value     []byte
	native    any // the original Go value, for GetWith to return without a lossy CBOR round-trip
	expiry    Expiry
	expiresAt time.Time // zero means "never" (ExpiryNone)
}

func (e *entry) expired(now time.Time) bool {
	return e.expiry.Kind != ExpiryNone && !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Service is the C3 cache contract.
type Service struct {
	mu    sync.Mutex
	items *lru.Cache[string, *entry]
	group singleflight.Group
	now   func() time.Time
}

// New creates a cache with the given capacity (0 uses DefaultMaxCapacity).
func New(maxCapacity int) (*Service, error) {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	c, err := lru.New[string, *entry](maxCapacity)
	if err != nil {
		return nil, errs.Internal("cache.New", "failed to allocate LRU cache", err)
	}
	return &Service{items: c, now: time.Now}, nil
}

func compositeKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Contains reports whether a live (unexpired) entry exists.
func (s *Service) Contains(namespace, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peek(namespace, key) != nil
}

// peek must be called with s.mu held. It evicts and returns nil if the
// entry is expired, and bumps TTI entries' horizon on access.
func (s *Service) peek(namespace, key string) *entry {
	ck := compositeKey(namespace, key)
	e, ok := s.items.Get(ck)
	if !ok {
		return nil
	}
	now := s.now()
	if e.expired(now) {
		s.items.Remove(ck)
		return nil
	}
	if e.expiry.Kind == ExpiryTTI {
		e.expiresAt = now.Add(e.expiry.TTL)
	}
	return e
}

// Get returns the decoded value for key, or ok=false if absent or expired.
func (s *Service) Get(namespace, key string, out any) (bool, error) {
	s.mu.Lock()
	e := s.peek(namespace, key)
	s.mu.Unlock()
	if e == nil {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := cbor.Unmarshal(e.value, out); err != nil {
		return false, errs.Internal("cache.Get", "cbor decode failed", err)
	}
	return true, nil
}

// Set stores value (CBOR-encoded) under namespace+key with the given expiry.
func (s *Service) Set(namespace, key string, value any, expiry Expiry) error {
	b, err := cbor.Marshal(value)
	if err != nil {
		return errs.Internal("cache.Set", "cbor encode failed", err)
	}
	e := &entry{value: b, native: value, expiry: expiry}
	if expiry.Kind != ExpiryNone {
		e.expiresAt = s.now().Add(expiry.TTL)
	}
	s.mu.Lock()
	s.items.Add(compositeKey(namespace, key), e)
	s.mu.Unlock()
	return nil
}

// Delete removes an entry; it is not an error if absent.
func (s *Service) Delete(namespace, key string) {
	s.mu.Lock()
	s.items.Remove(compositeKey(namespace, key))
	s.mu.Unlock()
}

// GetWith performs a race-safe lazy initialization: concurrent calls for the
// same (namespace, key) collapse into a single invocation of init, per
// spec.md §5 "the cache_get_with initializer" being a declared suspension
// point. The result is cached with expiry before being returned to every
// waiter.
func (s *Service) GetWith(namespace, key string, expiry Expiry, init func() (any, error)) (any, error) {
	ck := compositeKey(namespace, key)

	s.mu.Lock()
	if e := s.peek(namespace, key); e != nil {
		s.mu.Unlock()
		return e.native, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(ck, func() (any, error) {
		val, err := init()
		if err != nil {
			return nil, err
		}
		if err := s.Set(namespace, key, val, expiry); err != nil {
			return nil, err
		}
		return val, nil
	})
	return v, err
}
