package service

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// ConversationCache - in-memory cache for fast conversation switching
// =============================================================================

// ConversationEntry is one cached conversation with its messages. Entries
// are owned exclusively by the cache; callers treat them as read-only.
type ConversationEntry struct {
	Conversation *Conversation
	Messages     []Message
	CachedAt     time.Time
}

// LoadFunc fetches a conversation from persistence; it backs cache misses
// and background refreshes.
type LoadFunc func(ctx context.Context, id string) (*Conversation, []Message, error)

// ConversationCache keeps recently viewed conversations in memory so a
// switch back to one renders from the cached copy immediately, with a
// stale-while-revalidate refresh behind it. The cache is size-bounded:
// when full it evicts about half of the entries.
type ConversationCache struct {
	mu       sync.RWMutex
	entries  map[string]*ConversationEntry
	maxSize  int
	hits     int64
	misses   int64
	activeID string
}

// DefaultMaxCacheEntries is the default maximum number of cached
// conversations.
const DefaultMaxCacheEntries = 256

// NewConversationCache creates a cache bounded at maxSize entries.
func NewConversationCache(maxSize int) *ConversationCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxCacheEntries
	}
	return &ConversationCache{
		entries: make(map[string]*ConversationEntry),
		maxSize: maxSize,
	}
}

// Get retrieves a cached entry. Returns the entry and true on a hit.
func (c *ConversationCache) Get(id string) (*ConversationEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[id]; ok {
		c.hits++
		return entry, true
	}
	c.misses++
	return nil, false
}

// Put stores an entry, evicting when the cache is full. Last write wins.
func (c *ConversationCache) Put(id string, entry *ConversationEntry) {
	if id == "" || entry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[id] = entry
}

// evictLocked removes approximately half of the cache entries.
// Must be called with the write lock held.
func (c *ConversationCache) evictLocked() {
	toRemove := c.maxSize / 2
	removed := 0
	for id := range c.entries {
		if id == c.activeID {
			continue
		}
		delete(c.entries, id)
		removed++
		if removed >= toRemove {
			break
		}
	}
}

// Invalidate evicts one conversation.
func (c *ConversationCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear removes all entries and resets the counters.
func (c *ConversationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ConversationEntry)
	c.hits = 0
	c.misses = 0
}

// Size returns the current number of entries.
func (c *ConversationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache statistics (hits, misses, size).
func (c *ConversationCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.entries)
}

// SetActive records which conversation the user is viewing. Background
// refreshes only touch visible state while their conversation is still
// the active one.
func (c *ConversationCache) SetActive(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = id
}

// Active returns the currently viewed conversation id.
func (c *ConversationCache) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID
}

// Switch makes id the active conversation. On a hit the cached entry is
// applied synchronously and refreshed in the background
// (stale-while-revalidate); on a miss the conversation is loaded,
// applied, then cached. apply receives the entry to render.
func (c *ConversationCache) Switch(ctx context.Context, id string, load LoadFunc, apply func(*ConversationEntry)) error {
	c.SetActive(id)

	if entry, ok := c.Get(id); ok {
		apply(entry)
		go c.refresh(ctx, id, load, apply)
		return nil
	}

	entry, err := c.loadEntry(ctx, id, load)
	if err != nil {
		return err
	}
	apply(entry)
	c.Put(id, entry)
	return nil
}

// Preload populates the cache ahead of navigation without disturbing the
// current view.
func (c *ConversationCache) Preload(ctx context.Context, id string, load LoadFunc) error {
	if _, ok := c.Get(id); ok {
		return nil
	}
	entry, err := c.loadEntry(ctx, id, load)
	if err != nil {
		return err
	}
	c.Put(id, entry)
	return nil
}

// refresh re-fetches from persistence and silently updates both the
// cache and, if the user is still viewing this conversation, the visible
// state. A refresh that lands after a newer switch must not clobber it.
func (c *ConversationCache) refresh(ctx context.Context, id string, load LoadFunc, apply func(*ConversationEntry)) {
	entry, err := c.loadEntry(ctx, id, load)
	if err != nil {
		Debugf("Background refresh of %s failed: %v", id, err)
		return
	}
	c.Put(id, entry)
	if c.Active() == id {
		apply(entry)
	}
}

func (c *ConversationCache) loadEntry(ctx context.Context, id string, load LoadFunc) (*ConversationEntry, error) {
	conv, messages, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ConversationEntry{
		Conversation: conv,
		Messages:     messages,
		CachedAt:     time.Now(),
	}, nil
}
