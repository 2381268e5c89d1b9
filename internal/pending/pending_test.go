package pending

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSetReplacesPrevious(t *testing.T) {
	s := NewStore(0)

	sess := s.Lock(1)
	_, ok := sess.Action()
	assert.False(t, ok, "new user should be idle")

	sess.Set(VoiceForThread(10))
	sess.Set(TextReply(20))
	a, ok := sess.Action()
	require.True(t, ok)
	assert.Equal(t, AwaitingTextReply, a.Kind)
	assert.Equal(t, int64(20), a.CommentID)
	assert.Zero(t, a.ThreadID)
	sess.Unlock()

	a, ok = s.Get(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingTextReply, a.Kind)

	_, ok = s.Get(2)
	assert.False(t, ok, "users must not share state")
}

func TestSessionClearDropsEntry(t *testing.T) {
	s := NewStore(0)

	sess := s.Lock(1)
	sess.Set(SearchCode())
	sess.Unlock()
	assert.Equal(t, 1, s.Len())

	sess = s.Lock(1)
	sess.Clear()
	sess.Unlock()
	assert.Equal(t, 0, s.Len())

	sess = s.Lock(1)
	sess.Set(Action{Kind: Idle})
	sess.Unlock()
	assert.Equal(t, 0, s.Len())
}

func TestActionExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(30 * time.Minute)
	s.now = func() time.Time { return now }

	sess := s.Lock(1)
	sess.Set(OwnedLink())
	sess.Unlock()

	now = now.Add(29 * time.Minute)
	_, ok := s.Get(1)
	assert.True(t, ok, "action within TTL should survive")

	now = now.Add(2 * time.Minute)
	_, ok = s.Get(1)
	assert.False(t, ok, "action past TTL should read as idle")
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }

	for _, id := range []int64{1, 2} {
		sess := s.Lock(id)
		sess.Set(ListenTarget())
		sess.Unlock()
	}

	now = now.Add(2 * time.Minute)

	held := s.Lock(2)
	assert.Equal(t, 1, s.Sweep(), "only the unheld stale entry is swept")
	held.Unlock()

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestLockSerializesPerUser(t *testing.T) {
	s := NewStore(0)

	const workers = 50
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := s.Lock(7)
			defer sess.Unlock()

			a, _ := sess.Action()
			counter++
			sess.Set(VoiceReply(a.CommentID + 1))
		}()
	}
	wg.Wait()

	a, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, workers, counter)
	assert.Equal(t, int64(workers), a.CommentID, "every read-modify-write must observe the previous one")
}

func TestKindAwaitsLink(t *testing.T) {
	tests := map[Kind]bool{
		Idle:                   false,
		AwaitingSearchCode:     false,
		AwaitingPublicLink:     true,
		AwaitingOwnedLink:      true,
		AwaitingListenTarget:   true,
		AwaitingVoiceForThread: false,
		AwaitingVoiceReply:     false,
		AwaitingTextReply:      false,
	}
	for k, want := range tests {
		assert.Equal(t, want, k.AwaitsLink(), k.String())
	}
}
