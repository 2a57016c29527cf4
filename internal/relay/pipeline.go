package relay

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/chatrelay/chatrelay/internal/database"
	"github.com/chatrelay/chatrelay/internal/stats"
	"github.com/chatrelay/chatrelay/internal/types"
)

// MessageStore is the slice of the repository the relay depends on:
// appends with store-assigned identity and timestamp, plus room
// existence for join validation.
type MessageStore interface {
	RoomExists(roomId string) (bool, error)
	AppendMessage(roomId string, userId int, username, content string) (database.Message, error)
}

// Pipeline validates, persists and fans out chat messages. A per-room
// mutex is held across the persist and fan-out steps: when one message's
// persistence completes before another's begins, the room's members
// observe them in that order. Distinct rooms use distinct mutexes and
// never contend, so a slow store call only delays that room's traffic.
type Pipeline struct {
	store    MessageStore
	registry *Registry
	log      *log.Logger
	stats    stats.StatsProvider

	mu    sync.Mutex
	order map[string]*sync.Mutex
}

func NewPipeline(store MessageStore, registry *Registry, logger *log.Logger, sp stats.StatsProvider) *Pipeline {
	return &Pipeline{
		store:    store,
		registry: registry,
		log:      logger,
		stats:    sp,
		order:    make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) orderLock(roomId string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.order[roomId]
	if !ok {
		l = &sync.Mutex{}
		p.order[roomId] = l
	}
	return l
}

// Submit persists the message and delivers the canonical stored form to
// every member in the room's snapshot at broadcast time, the sender
// included. On a store failure nothing is broadcast, registry state is
// untouched and ErrPersistence is returned to the caller.
func (p *Pipeline) Submit(roomId string, userId int, username, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, ErrEmptyMessage
	}

	l := p.orderLock(roomId)
	l.Lock()
	defer l.Unlock()

	stored, err := p.store.AppendMessage(roomId, userId, username, content)
	if err != nil {
		p.log.Printf("append message in room %q: %v", roomId, err)
		return types.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	p.stats.Incr("MessagesPersisted")

	msg := types.Message{
		Id:        stored.Id,
		RoomId:    stored.RoomId,
		UserId:    stored.UserId,
		Username:  stored.Username,
		Content:   stored.Content,
		CreatedAt: stored.CreatedAt,
	}

	for _, member := range p.registry.Members(roomId) {
		if !member.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: msg.CreatedAt},
			Message:     &msg,
		}) {
			// A broken or saturated recipient never aborts the
			// broadcast; it is reconciled through its own close path.
			p.log.Printf("dropping message %d for session %s in room %q", msg.Id, member.id, roomId)
		}
	}

	return msg, nil
}
