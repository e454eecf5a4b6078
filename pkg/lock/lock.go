// Package lock provides named, TTL-bound, non-blocking mutual exclusion.
package lock

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"server-splitter/pkg/metrics"
)

// ErrBusy is returned when the lock is currently held by someone else.
var ErrBusy = errors.New("lock is held by another operation")

func ServerKey(id int64) string { return fmt.Sprintf("server:%d:splitter", id) }

func NodeKey(id int64) string { return fmt.Sprintf("node:%d:threads", id) }

// Store is an atomic check-and-set keyed store with TTL expiry.
type Store interface {
	// SetIfAbsent stores token under key unless a live entry exists.
	SetIfAbsent(key, token string, ttl time.Duration) bool
	// DeleteIfEquals removes key only if it still holds token.
	DeleteIfEquals(key, token string) bool
}

type Coordinator struct {
	store Store
	clock clock.PassiveClock
}

func NewCoordinator(store Store, clk clock.PassiveClock) *Coordinator {
	return &Coordinator{store: store, clock: clk}
}

// NewInMemoryCoordinator is a Coordinator for a single process.
func NewInMemoryCoordinator() *Coordinator {
	return NewCoordinator(NewMemoryStore(), clock.RealClock{})
}

type Handle struct {
	key      string
	token    string
	acquired time.Time
	c        *Coordinator
	once     sync.Once
}

// Release gives the lock up. Releasing an expired lock that has since been
// taken by another holder leaves the new holder untouched.
func (h *Handle) Release() {
	h.once.Do(func() {
		if !h.c.store.DeleteIfEquals(h.key, h.token) {
			log.WithFields(log.Fields{
				"key":  h.key,
				"held": h.c.clock.Since(h.acquired).String(),
			}).Warn("lock expired before release")
		}
	})
}

// Acquire takes key for at most ttl. It never waits.
func (c *Coordinator) Acquire(key string, ttl time.Duration) (*Handle, error) {
	token := uuid.NewString()
	if !c.store.SetIfAbsent(key, token, ttl) {
		metrics.LockContention.WithLabelValues(scope(key)).Inc()
		return nil, fmt.Errorf("%s: %w", key, ErrBusy)
	}
	return &Handle{key: key, token: token, acquired: c.clock.Now(), c: c}, nil
}

// AcquireAll takes every key in lexicographic order so that any two callers
// locking overlapping sets cannot deadlock. On failure nothing stays held.
func (c *Coordinator) AcquireAll(ttl time.Duration, keys ...string) ([]*Handle, error) {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)

	handles := make([]*Handle, 0, len(ordered))
	for i, key := range ordered {
		if i > 0 && key == ordered[i-1] {
			continue
		}
		h, err := c.Acquire(key, ttl)
		if err != nil {
			ReleaseAll(handles)
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// ReleaseAll releases handles in reverse acquisition order.
func ReleaseAll(handles []*Handle) {
	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Release()
	}
}

func scope(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
