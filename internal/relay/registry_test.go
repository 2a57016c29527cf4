package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Join(t *testing.T) {
	t.Run("first join", func(t *testing.T) {
		r := NewRegistry()
		s := &Session{id: "s1"}

		others, joined := r.Join("testroom", s)
		assert.True(t, joined, "expected first join to change membership")
		assert.Empty(t, others, "expected no other members before first join")
		assert.Contains(t, r.Members("testroom"), s, "expected session to be a member after join")
	})

	t.Run("join is idempotent", func(t *testing.T) {
		r := NewRegistry()
		s := &Session{id: "s1"}

		_, joined := r.Join("testroom", s)
		assert.True(t, joined, "expected first join to change membership")

		others, joined := r.Join("testroom", s)
		assert.False(t, joined, "expected repeat join to be a no-op")
		assert.Empty(t, others, "expected joining session to be excluded from others")
		assert.Len(t, r.Members("testroom"), 1, "expected a single membership after repeat join")
	})

	t.Run("others snapshot excludes joiner", func(t *testing.T) {
		r := NewRegistry()
		s1 := &Session{id: "s1"}
		s2 := &Session{id: "s2"}

		r.Join("testroom", s1)
		others, joined := r.Join("testroom", s2)
		assert.True(t, joined, "expected join to change membership")
		assert.Len(t, others, 1, "expected one prior member in the snapshot")
		assert.Equal(t, s1, others[0], "expected snapshot to contain the prior member")
	})
}

func TestRegistry_Leave(t *testing.T) {
	t.Run("leave removes membership", func(t *testing.T) {
		r := NewRegistry()
		s1 := &Session{id: "s1"}
		s2 := &Session{id: "s2"}

		r.Join("testroom", s1)
		r.Join("testroom", s2)

		remaining, left := r.Leave("testroom", s1)
		assert.True(t, left, "expected leave to change membership")
		assert.Len(t, remaining, 1, "expected one member remaining after leave")
		assert.Equal(t, s2, remaining[0], "expected remaining snapshot to exclude the leaver")
		assert.NotContains(t, r.Members("testroom"), s1, "expected session to be removed after leave")
	})

	t.Run("leave is idempotent", func(t *testing.T) {
		r := NewRegistry()
		s := &Session{id: "s1"}

		r.Join("testroom", s)
		_, left := r.Leave("testroom", s)
		assert.True(t, left, "expected first leave to change membership")

		remaining, left := r.Leave("testroom", s)
		assert.False(t, left, "expected repeat leave to be a no-op")
		assert.Empty(t, remaining, "expected no members remaining")
	})

	t.Run("leave unknown room", func(t *testing.T) {
		r := NewRegistry()
		s := &Session{id: "s1"}

		remaining, left := r.Leave("notfound", s)
		assert.False(t, left, "expected leave of unknown room to be a no-op")
		assert.Nil(t, remaining, "expected no remaining members for unknown room")
	})
}

func TestRegistry_Members(t *testing.T) {
	r := NewRegistry()

	assert.Nil(t, r.Members("testroom"), "expected nil snapshot for unknown room")

	s1 := &Session{id: "s1"}
	s2 := &Session{id: "s2"}
	r.Join("testroom", s1)
	r.Join("testroom", s2)

	members := r.Members("testroom")
	assert.Len(t, members, 2, "expected both members in snapshot")
	assert.ElementsMatch(t, []*Session{s1, s2}, members, "expected snapshot to contain both sessions")

	// snapshot is detached from the registry
	r.Leave("testroom", s1)
	assert.Len(t, members, 2, "expected prior snapshot to be unaffected by later leave")
}

func TestRegistry_concurrent(t *testing.T) {
	r := NewRegistry()

	const n = 50
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = &Session{id: fmt.Sprintf("s%d", i)}
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Join("testroom", s)
		}(s)
	}
	wg.Wait()

	assert.Len(t, r.Members("testroom"), n, "expected every concurrent join to be recorded")

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Leave("testroom", s)
		}(s)
	}
	wg.Wait()

	assert.Empty(t, r.Members("testroom"), "expected every concurrent leave to be recorded")
}
