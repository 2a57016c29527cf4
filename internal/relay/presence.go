package relay

import (
	"log"

	"github.com/chatrelay/chatrelay/internal/stats"
	"github.com/chatrelay/chatrelay/internal/types"
)

// Notifier delivers transient joined/left events to an explicit
// recipient snapshot. Events are never persisted or replayed, and
// delivery is best-effort: a recipient mid-disconnect or with a full
// outbound buffer simply misses the event.
type Notifier struct {
	log   *log.Logger
	stats stats.StatsProvider
}

func NewNotifier(logger *log.Logger, sp stats.StatsProvider) *Notifier {
	return &Notifier{log: logger, stats: sp}
}

func (n *Notifier) NotifyJoined(roomId, username string, recipients []*Session) {
	n.notify(types.Presence{RoomId: roomId, Username: username, Joined: true}, recipients)
}

func (n *Notifier) NotifyLeft(roomId, username string, recipients []*Session) {
	n.notify(types.Presence{RoomId: roomId, Username: username, Joined: false}, recipients)
}

func (n *Notifier) notify(ev types.Presence, recipients []*Session) {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Presence:    &ev,
	}

	for _, r := range recipients {
		if !r.queueMessage(msg) {
			n.log.Printf("dropping presence event for session %s in room %q", r.id, ev.RoomId)
		}
	}

	n.stats.Incr("PresenceEvents")
}
