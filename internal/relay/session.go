package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatrelay/chatrelay/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufSize    = 256
)

// Session is one connection's live chat state: the connection identity,
// the authenticated user, and the current room, if any. A session is in
// at most one room at a time; the registry references it but never owns
// it.
type Session struct {
	id     string
	conn   *websocket.Conn
	server *RelayServer
	log    *log.Logger
	user   types.User
	send   chan *ServerMessage
	stop   chan struct{}

	mu   sync.Mutex
	room string

	closeOnce sync.Once
}

func NewSession(user types.User, conn *websocket.Conn, rs *RelayServer, l *log.Logger) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		server: rs,
		log:    l,
		user:   user,
		send:   make(chan *ServerMessage, sendBufSize),
		stop:   make(chan struct{}),
	}
}

func (s *Session) Id() string { return s.id }

func (s *Session) User() types.User { return s.user }

// CurrentRoom returns the room the session is joined to, or "" if none.
func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Join subscribes the session to the room and announces it to the
// members present before the join. A session already in a room fails
// with ErrAlreadyInRoom and must leave first; there is no implicit
// switch. The joining session does not receive its own join event.
func (s *Session) Join(roomId string) error {
	if s.CurrentRoom() != "" {
		return ErrAlreadyInRoom
	}

	ok, err := s.server.store.RoomExists(roomId)
	if err != nil {
		return fmt.Errorf("room lookup: %w", err)
	}
	if !ok {
		return ErrRoomNotFound
	}

	s.mu.Lock()
	if s.room != "" {
		s.mu.Unlock()
		return ErrAlreadyInRoom
	}
	s.room = roomId
	s.mu.Unlock()

	others, joined := s.server.registry.Join(roomId, s)
	if joined {
		s.server.notifier.NotifyJoined(roomId, s.user.Username, others)
	}

	return nil
}

// Leave unsubscribes the session from its current room and announces the
// departure to the remaining members. Idempotent: a session with no room
// is a no-op.
func (s *Session) Leave() {
	s.mu.Lock()
	roomId := s.room
	s.room = ""
	s.mu.Unlock()

	if roomId == "" {
		return
	}

	remaining, left := s.server.registry.Leave(roomId, s)
	if left {
		s.server.notifier.NotifyLeft(roomId, s.user.Username, remaining)
	}
}

// Send submits a message to the session's current room.
func (s *Session) Send(content string) (types.Message, error) {
	roomId := s.CurrentRoom()
	if roomId == "" {
		return types.Message{}, ErrNotInRoom
	}

	return s.server.pipeline.Submit(roomId, s.user.Id, s.user.Username, content)
}

// Close performs the implicit leave, deregisters the session and stops
// its write pump. Idempotent; the read pump calls it on disconnect so a
// dropped connection never leaves a ghost member behind.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Leave()
		s.server.deregisterSession(s)
		close(s.stop)
	})
}

func (s *Session) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				s.log.Println("failed to serialize message:", err)
				continue
			}

			if !s.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.Close()
		s.log.Println("read exiting")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(appData string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Println("error parsing message:", err)
			s.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		s.dispatch(&msg)
	}
}

func (s *Session) dispatch(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		if err := s.Join(msg.Join.RoomId); err != nil {
			s.queueMessage(ErrResponse(msg.Id, err))
			return
		}
		s.queueMessage(NoErrOK(msg.Id, map[string]any{"room_id": msg.Join.RoomId}))
	case msg.Publish != nil:
		if _, err := s.Send(msg.Publish.Content); err != nil {
			s.queueMessage(ErrResponse(msg.Id, err))
			return
		}
		s.queueMessage(NoErrAccepted(msg.Id))
	case msg.Leave != nil:
		s.Leave()
		s.queueMessage(NoErrOK(msg.Id, nil))
	default:
		s.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (s *Session) queueMessage(msg *ServerMessage) bool {
	select {
	case s.send <- msg:
	default:
		s.log.Println("failed to send message to session, channel is full")
		return false
	}

	return true
}

func (s *Session) sendMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}
