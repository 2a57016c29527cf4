package relay

import (
	"context"
	"log"
	"sync"

	"github.com/samber/lo"

	"github.com/chatrelay/chatrelay/internal/stats"
)

// RelayServer owns the room registry, broadcast pipeline and presence
// notifier, and tracks the live session set.
type RelayServer struct {
	log      *log.Logger
	store    MessageStore
	stats    stats.StatsProvider
	registry *Registry
	pipeline *Pipeline
	notifier *Notifier

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewRelayServer(logger *log.Logger, store MessageStore, sp stats.StatsProvider) *RelayServer {
	registry := NewRegistry()
	rs := &RelayServer{
		log:      logger,
		store:    store,
		stats:    sp,
		registry: registry,
		pipeline: NewPipeline(store, registry, logger, sp),
		notifier: NewNotifier(logger, sp),
		sessions: make(map[*Session]struct{}),
	}

	for _, name := range []string{"ActiveSessions", "MessagesPersisted", "PresenceEvents"} {
		sp.RegisterMetric(name)
	}

	return rs
}

func (rs *RelayServer) RegisterSession(s *Session) {
	rs.mu.Lock()
	rs.sessions[s] = struct{}{}
	rs.mu.Unlock()
	rs.stats.Incr("ActiveSessions")
}

func (rs *RelayServer) deregisterSession(s *Session) {
	rs.mu.Lock()
	_, ok := rs.sessions[s]
	delete(rs.sessions, s)
	rs.mu.Unlock()

	if ok {
		rs.stats.Decr("ActiveSessions")
	}
}

// Shutdown closes every live session. Each close performs the implicit
// leave, so no room retains ghost members after shutdown.
func (rs *RelayServer) Shutdown(ctx context.Context) error {
	rs.mu.Lock()
	sessions := lo.Keys(rs.sessions)
	rs.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
