package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/chatrelay/chatrelay/internal/database"
	"github.com/chatrelay/chatrelay/internal/stats"
	"github.com/chatrelay/chatrelay/internal/testutil"
	"github.com/chatrelay/chatrelay/internal/types"
)

func TestNewRelayServer(t *testing.T) {
	db := &database.MockChatRepository{}
	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Return()

	rs := NewRelayServer(testutil.TestLogger(t), db, sp)
	assert.NotNil(t, rs.registry, "expected registry to be initialized")
	assert.NotNil(t, rs.pipeline, "expected pipeline to be initialized")
	assert.NotNil(t, rs.notifier, "expected notifier to be initialized")

	for _, name := range []string{"ActiveSessions", "MessagesPersisted", "PresenceEvents"} {
		sp.AssertCalled(t, "RegisterMetric", name)
	}
}

func Test_RegisterSession(t *testing.T) {
	db := &database.MockChatRepository{}
	sp := &stats.MockStatsUpdater{}
	sp.On("RegisterMetric", mock.Anything).Return()
	sp.On("Incr", "ActiveSessions").Return().Once()
	sp.On("Decr", "ActiveSessions").Return().Once()
	defer sp.AssertExpectations(t)

	rs := NewRelayServer(testutil.TestLogger(t), db, sp)
	s := newTestSession(types.User{Id: 1, Username: "alice"}, rs)

	rs.RegisterSession(s)
	rs.mu.Lock()
	_, ok := rs.sessions[s]
	rs.mu.Unlock()
	assert.True(t, ok, "expected session to be tracked after registration")

	rs.deregisterSession(s)
	rs.mu.Lock()
	_, ok = rs.sessions[s]
	rs.mu.Unlock()
	assert.False(t, ok, "expected session to be removed after deregistration")

	// deregistering an unknown session must not decrement again
	rs.deregisterSession(s)
}

func Test_Shutdown(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	rs := newTestRelayServer(t, db)

	db.On("RoomExists", "testroom").Return(true, nil).Twice()

	s1 := newTestSession(types.User{Id: 1, Username: "alice"}, rs)
	s2 := newTestSession(types.User{Id: 2, Username: "bob"}, rs)
	rs.RegisterSession(s1)
	rs.RegisterSession(s2)
	assert.NoError(t, s1.Join("testroom"))
	assert.NoError(t, s2.Join("testroom"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := rs.Shutdown(ctx)
	assert.NoError(t, err, "expected shutdown to complete")

	assert.Empty(t, rs.registry.Members("testroom"), "expected no room members after shutdown")
	rs.mu.Lock()
	remaining := len(rs.sessions)
	rs.mu.Unlock()
	assert.Zero(t, remaining, "expected no tracked sessions after shutdown")
}

// Walks two sessions through a full conversation: join, presence, chat,
// leave, and a message sent to a room the other session has already left.
func TestRelayConversation(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	rs := newTestRelayServer(t, db)

	db.On("RoomExists", "general").Return(true, nil).Twice()

	alice := newTestSession(types.User{Id: 1, Username: "alice"}, rs)
	bob := newTestSession(types.User{Id: 2, Username: "bob"}, rs)
	rs.RegisterSession(alice)
	rs.RegisterSession(bob)

	assert.NoError(t, alice.Join("general"), "expected alice to join")
	assert.NoError(t, bob.Join("general"), "expected bob to join")

	// alice is told bob arrived; bob sees nothing of his own join
	select {
	case msg := <-alice.send:
		assert.NotNil(t, msg.Presence, "expected a presence event for alice")
		assert.Equal(t, "bob", msg.Presence.Username, "expected bob's arrival")
		assert.True(t, msg.Presence.Joined, "expected a joined event")
	default:
		t.Fatal("expected presence event for alice, but none was queued")
	}
	select {
	case msg := <-bob.send:
		t.Fatalf("expected no event for bob, got %+v", msg)
	default:
	}

	db.On("AppendMessage", "general", 1, "alice", "hi").
		Return(database.Message{Id: 1, RoomId: "general", UserId: 1, Username: "alice", Content: "hi", CreatedAt: Now()}, nil).Once()

	sent, err := alice.Send("hi")
	assert.NoError(t, err, "expected send to succeed")

	for _, s := range []*Session{alice, bob} {
		select {
		case msg := <-s.send:
			assert.NotNil(t, msg.Message, "expected the chat message for %s", s.user.Username)
			assert.Equal(t, sent, *msg.Message, "expected the stored message to be delivered")
		default:
			t.Fatalf("expected chat message for %s, but none was queued", s.user.Username)
		}
	}

	bob.Leave()
	select {
	case msg := <-alice.send:
		assert.NotNil(t, msg.Presence, "expected a presence event for alice")
		assert.Equal(t, "bob", msg.Presence.Username, "expected bob's departure")
		assert.False(t, msg.Presence.Joined, "expected a left event")
	default:
		t.Fatal("expected presence event for alice, but none was queued")
	}

	db.On("AppendMessage", "general", 1, "alice", "bye").
		Return(database.Message{Id: 2, RoomId: "general", UserId: 1, Username: "alice", Content: "bye", CreatedAt: Now()}, nil).Once()

	_, err = alice.Send("bye")
	assert.NoError(t, err, "expected send to succeed")

	select {
	case msg := <-alice.send:
		assert.NotNil(t, msg.Message, "expected alice to receive her own message")
		assert.Equal(t, "bye", msg.Message.Content, "expected message content to match")
	default:
		t.Fatal("expected chat message for alice, but none was queued")
	}
	select {
	case msg := <-bob.send:
		t.Fatalf("expected no delivery to a departed member, got %+v", msg)
	default:
	}
}

// A store outage rejects the in-flight message but leaves the room fully
// usable for the next one.
func TestRelayStoreOutage(t *testing.T) {
	db := &database.MockChatRepository{}
	defer db.AssertExpectations(t)
	rs := newTestRelayServer(t, db)

	db.On("RoomExists", "general").Return(true, nil).Twice()

	alice := newTestSession(types.User{Id: 1, Username: "alice"}, rs)
	bob := newTestSession(types.User{Id: 2, Username: "bob"}, rs)
	assert.NoError(t, alice.Join("general"))
	assert.NoError(t, bob.Join("general"))
	<-alice.send // drain bob's join event

	db.On("AppendMessage", "general", 1, "alice", "hi").
		Return(database.Message{}, errors.New("connection refused")).Once()

	_, err := alice.Send("hi")
	assert.ErrorIs(t, err, ErrPersistence, "expected the outage to surface to the sender")
	assert.Contains(t, rs.registry.Members("general"), alice, "expected membership to survive the failure")
	assert.Contains(t, rs.registry.Members("general"), bob, "expected membership to survive the failure")

	for _, s := range []*Session{alice, bob} {
		select {
		case msg := <-s.send:
			t.Fatalf("expected no broadcast after the failure, got %+v", msg)
		default:
		}
	}

	db.On("AppendMessage", "general", 1, "alice", "hi again").
		Return(database.Message{Id: 1, RoomId: "general", UserId: 1, Username: "alice", Content: "hi again", CreatedAt: Now()}, nil).Once()

	_, err = alice.Send("hi again")
	assert.NoError(t, err, "expected the room to recover once the store does")

	for _, s := range []*Session{alice, bob} {
		select {
		case msg := <-s.send:
			assert.NotNil(t, msg.Message, "expected the retried message for %s", s.user.Username)
			assert.Equal(t, "hi again", msg.Message.Content, "expected message content to match")
		default:
			t.Fatalf("expected chat message for %s, but none was queued", s.user.Username)
		}
	}
}
