package realtime

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
)

const shardCount = 32

// Channel is a writable real-time connection owned by one user.
type Channel interface {
	Send(msg []byte) error
	Close() error
}

type slot struct {
	mu      sync.Mutex
	ch      Channel
	removed bool
}

type shard struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// Registry maps user ids to at most one live Channel. Operations on the
// same user are serialized; different users proceed in parallel.
type Registry struct {
	shards  [shardCount]*shard
	active  atomic.Int64
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewRegistry(logger *logger.Logger, metrics *metrics.Metrics) *Registry {
	r := &Registry{logger: logger, metrics: metrics}
	for i := range r.shards {
		r.shards[i] = &shard{slots: make(map[string]*slot)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// lockSlot returns the live slot for userID with its mutex held. When
// create is false and no entry exists it returns nil.
func (r *Registry) lockSlot(userID string, create bool) *slot {
	sh := r.shardFor(userID)
	for {
		sh.mu.RLock()
		s, ok := sh.slots[userID]
		sh.mu.RUnlock()

		if !ok {
			if !create {
				return nil
			}
			sh.mu.Lock()
			s, ok = sh.slots[userID]
			if !ok {
				s = &slot{}
				sh.slots[userID] = s
			}
			sh.mu.Unlock()
		}

		s.mu.Lock()
		if !s.removed {
			return s
		}
		// lost a race with removal; the map no longer points at s
		s.mu.Unlock()
	}
}

// evict drops the slot from its shard. s.mu must be held.
func (r *Registry) evict(userID string, s *slot) {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	if sh.slots[userID] == s {
		delete(sh.slots, userID)
	}
	sh.mu.Unlock()
	s.removed = true
	if s.ch != nil {
		s.ch = nil
		r.setActive(r.active.Add(-1))
	}
}

func (r *Registry) setActive(n int64) {
	if r.metrics != nil {
		r.metrics.ActiveConnections.Set(float64(n))
	}
}

// Connect registers ch for userID, replacing any existing channel. The
// replaced channel is not closed here; its owner cleans it up via Release.
func (r *Registry) Connect(userID string, ch Channel) {
	s := r.lockSlot(userID, true)
	defer s.mu.Unlock()

	if s.ch == nil {
		r.setActive(r.active.Add(1))
	} else if s.ch != ch {
		r.logger.Debug("Replacing real-time channel", "user_id", userID)
	}
	s.ch = ch

	r.logger.Info("Real-time channel connected", "user_id", userID)
}

// Disconnect removes the entry for userID. Unknown users are a no-op.
func (r *Registry) Disconnect(userID string) {
	s := r.lockSlot(userID, false)
	if s == nil {
		return
	}
	defer s.mu.Unlock()

	r.evict(userID, s)
	r.logger.Info("Real-time channel disconnected", "user_id", userID)
}

// Release removes the entry for userID only if it is still ch. A closing
// socket uses this so it cannot evict a newer connection for the same user.
func (r *Registry) Release(userID string, ch Channel) bool {
	s := r.lockSlot(userID, false)
	if s == nil {
		return false
	}
	defer s.mu.Unlock()

	if s.ch != ch {
		return false
	}
	r.evict(userID, s)
	r.logger.Info("Real-time channel released", "user_id", userID)
	return true
}

// Send writes msg to the user's channel and reports whether it was
// delivered. A channel that fails to accept the write is removed.
func (r *Registry) Send(userID string, msg []byte) bool {
	s := r.lockSlot(userID, false)
	if s == nil {
		return false
	}
	defer s.mu.Unlock()

	if s.ch == nil {
		return false
	}

	ch := s.ch
	if err := ch.Send(msg); err != nil {
		r.logger.Warn("Real-time send failed, dropping channel", "user_id", userID, "error", err.Error())
		r.evict(userID, s)
		_ = ch.Close()
		return false
	}
	return true
}

// ActiveCount returns the number of registered channels.
func (r *Registry) ActiveCount() int {
	return int(r.active.Load())
}
