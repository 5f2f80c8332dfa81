package chat

import "sync"

// conversationLocks keeps one in-flight turn per conversation. Locks are
// created on demand and never evicted; the set stays small because a
// conversation's entry is a bare mutex.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*sync.Mutex)}
}

// tryAcquire reports whether the conversation was free. On true the
// caller owns the turn and must call release.
func (c *conversationLocks) tryAcquire(conversationID string) bool {
	c.mu.Lock()
	l, ok := c.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[conversationID] = l
	}
	c.mu.Unlock()
	return l.TryLock()
}

func (c *conversationLocks) release(conversationID string) {
	c.mu.Lock()
	l := c.locks[conversationID]
	c.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}
