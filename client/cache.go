package client

import (
	"sort"
	"sync"

	"capstone/model"
)

// Cache holds the known conversations by id. Listeners registered with
// Subscribe receive the ordered list after every change.
type Cache struct {
	mu        sync.Mutex
	convs     map[string]Conversation
	listeners map[int]func([]Conversation)
	nextID    int
}

// Snapshot is a saved cache state for Restore.
type Snapshot struct {
	convs map[string]Conversation
}

func NewCache() *Cache {
	return &Cache{
		convs:     make(map[string]Conversation),
		listeners: make(map[int]func([]Conversation)),
	}
}

// Subscribe registers fn and returns a func that removes it.
func (c *Cache) Subscribe(fn func([]Conversation)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Cache) Get(id string) (Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[id]
	return conv, ok
}

// Conversations returns every entry, newest first.
func (c *Cache) Conversations() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

func (c *Cache) sortedLocked() []Conversation {
	out := make([]Conversation, 0, len(c.convs))
	for _, conv := range c.convs {
		out = append(out, conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// update applies fn under the lock and notifies listeners when fn reports a change.
func (c *Cache) update(fn func(convs map[string]Conversation) bool) {
	c.mu.Lock()
	if !fn(c.convs) {
		c.mu.Unlock()
		return
	}
	list := c.sortedLocked()
	listeners := make([]func([]Conversation), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(list)
	}
}

// MergeList folds a list fetch into the cache. Entries whose messages are
// already loaded are left as they are; entries missing from list are kept.
func (c *Cache) MergeList(list []Conversation) {
	c.update(func(convs map[string]Conversation) bool {
		for _, in := range list {
			cur, ok := convs[in.ID]
			if ok && cur.Messages != nil {
				continue
			}
			cur.ID = in.ID
			cur.Title = in.Title
			cur.CreatedAt = in.CreatedAt
			convs[in.ID] = cur
		}
		return true
	})
}

// Replace stores conv as is, typically a detail fetch result.
func (c *Cache) Replace(conv Conversation) {
	c.update(func(convs map[string]Conversation) bool {
		convs[conv.ID] = conv
		return true
	})
}

// Insert adds a conversation the server has just created.
func (c *Cache) Insert(conv Conversation) {
	c.Replace(conv)
}

// AppendMessage adds msg to the conversation, or replaces the message with
// the same id. It is a no-op for a conversation the cache does not know.
func (c *Cache) AppendMessage(convID string, msg model.Message) bool {
	applied := false
	c.update(func(convs map[string]Conversation) bool {
		conv, ok := convs[convID]
		if !ok {
			return false
		}

		msgs := make([]model.Message, len(conv.Messages), len(conv.Messages)+1)
		copy(msgs, conv.Messages)
		replaced := false
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i] = msg
				replaced = true
				break
			}
		}
		if !replaced {
			msgs = append(msgs, msg)
		}
		conv.Messages = msgs
		convs[convID] = conv
		applied = true
		return true
	})
	return applied
}

func (c *Cache) Remove(id string) {
	c.update(func(convs map[string]Conversation) bool {
		if _, ok := convs[id]; !ok {
			return false
		}
		delete(convs, id)
		return true
	})
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.update(func(convs map[string]Conversation) bool {
		for id := range convs {
			delete(convs, id)
		}
		return true
	})
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	convs := make(map[string]Conversation, len(c.convs))
	for id, conv := range c.convs {
		convs[id] = conv
	}
	return Snapshot{convs: convs}
}

func (c *Cache) Restore(s Snapshot) {
	c.update(func(convs map[string]Conversation) bool {
		for id := range convs {
			delete(convs, id)
		}
		for id, conv := range s.convs {
			convs[id] = conv
		}
		return true
	})
}
