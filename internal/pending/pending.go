// Package pending keeps the one in-flight conversational intent each user
// may have, with a critical section per user.
package pending

import (
	"context"
	"sync"
	"time"
)

type Kind int

const (
	Idle Kind = iota
	AwaitingSearchCode
	AwaitingPublicLink
	AwaitingOwnedLink
	AwaitingVoiceForThread
	AwaitingVoiceReply
	AwaitingTextReply
	AwaitingListenTarget
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case AwaitingSearchCode:
		return "awaiting_search_code"
	case AwaitingPublicLink:
		return "awaiting_public_link"
	case AwaitingOwnedLink:
		return "awaiting_owned_link"
	case AwaitingVoiceForThread:
		return "awaiting_voice_for_thread"
	case AwaitingVoiceReply:
		return "awaiting_voice_reply"
	case AwaitingTextReply:
		return "awaiting_text_reply"
	case AwaitingListenTarget:
		return "awaiting_listen_target"
	}
	return "unknown"
}

// AwaitsLink reports whether the flow is waiting for a URL.
func (k Kind) AwaitsLink() bool {
	return k == AwaitingPublicLink || k == AwaitingOwnedLink || k == AwaitingListenTarget
}

// Action is the pending intent. ThreadID is set for AwaitingVoiceForThread,
// CommentID for the two reply kinds.
type Action struct {
	Kind      Kind
	ThreadID  int64
	CommentID int64
	SetAt     time.Time
}

func SearchCode() Action             { return Action{Kind: AwaitingSearchCode} }
func PublicLink() Action             { return Action{Kind: AwaitingPublicLink} }
func OwnedLink() Action              { return Action{Kind: AwaitingOwnedLink} }
func ListenTarget() Action           { return Action{Kind: AwaitingListenTarget} }
func VoiceForThread(id int64) Action { return Action{Kind: AwaitingVoiceForThread, ThreadID: id} }
func VoiceReply(id int64) Action     { return Action{Kind: AwaitingVoiceReply, CommentID: id} }
func TextReply(id int64) Action      { return Action{Kind: AwaitingTextReply, CommentID: id} }

// Store is an in-memory, per-process pending-action store. Actions older
// than the TTL read as absent; a zero TTL keeps them forever.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	mu     sync.Mutex
	action Action
	set    bool
	refs   int // sessions holding or waiting on mu; guarded by Store.mu
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[int64]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lock enters userID's critical section. The returned session must be
// released with Unlock.
func (s *Store) Lock(userID int64) *Session {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return &Session{store: s, userID: userID, e: e}
}

// Get returns the user's current action without holding the lock afterwards.
func (s *Store) Get(userID int64) (Action, bool) {
	sess := s.Lock(userID)
	defer sess.Unlock()
	return sess.Action()
}

// Sweep drops expired and empty entries that no session holds and returns
// how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.refs > 0 {
			continue
		}
		if !e.set || s.expired(e.action) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Len returns the number of tracked users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(a Action) bool {
	return s.ttl > 0 && s.now().Sub(a.SetAt) > s.ttl
}

// Session is a held per-user critical section.
type Session struct {
	store  *Store
	userID int64
	e      *entry
}

func (ss *Session) UserID() int64 {
	return ss.userID
}

// Action returns the pending action, or Idle and false when there is none.
func (ss *Session) Action() (Action, bool) {
	if !ss.e.set {
		return Action{}, false
	}
	if ss.store.expired(ss.e.action) {
		ss.e.set = false
		ss.e.action = Action{}
		return Action{}, false
	}
	return ss.e.action, true
}

// Set replaces any pending action with a.
func (ss *Session) Set(a Action) {
	if a.Kind == Idle {
		ss.Clear()
		return
	}
	a.SetAt = ss.store.now()
	ss.e.action = a
	ss.e.set = true
}

func (ss *Session) Clear() {
	ss.e.action = Action{}
	ss.e.set = false
}

func (ss *Session) Unlock() {
	ss.e.mu.Unlock()

	s := ss.store
	s.mu.Lock()
	ss.e.refs--
	if ss.e.refs == 0 && !ss.e.set {
		if cur, ok := s.entries[ss.userID]; ok && cur == ss.e {
			delete(s.entries, ss.userID)
		}
	}
	s.mu.Unlock()
}
