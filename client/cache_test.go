package client

import (
	"testing"
	"time"

	"capstone/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMergeListKeepsLoadedMessages(t *testing.T) {
	c := NewCache()
	c.Replace(Conversation{ID: "a", Title: "old", CreatedAt: t0, Messages: []model.Message{{ID: "m1"}}})
	c.Replace(Conversation{ID: "b", Title: "old b", CreatedAt: t0})
	c.Replace(Conversation{ID: "gone", Title: "local only", CreatedAt: t0})

	c.MergeList([]Conversation{
		{ID: "a", Title: "new", CreatedAt: t0},
		{ID: "b", Title: "new b", CreatedAt: t0.Add(time.Minute)},
		{ID: "c", Title: "c", CreatedAt: t0.Add(2 * time.Minute)},
	})

	a, _ := c.Get("a")
	assert.Equal(t, "old", a.Title)
	assert.Len(t, a.Messages, 1)

	b, _ := c.Get("b")
	assert.Equal(t, "new b", b.Title)
	assert.Nil(t, b.Messages)

	_, ok := c.Get("gone")
	assert.True(t, ok)
	assert.Len(t, c.Conversations(), 4)
}

func TestAppendMessage(t *testing.T) {
	c := NewCache()
	assert.False(t, c.AppendMessage("nope", model.Message{ID: "m1"}))
	assert.Empty(t, c.Conversations())

	c.Replace(Conversation{ID: "a", CreatedAt: t0})
	require.True(t, c.AppendMessage("a", model.Message{ID: "m1", Content: "hi"}))
	require.True(t, c.AppendMessage("a", model.Message{ID: "p", Content: ""}))
	require.True(t, c.AppendMessage("a", model.Message{ID: "p", Content: "Hel"}))
	require.True(t, c.AppendMessage("a", model.Message{ID: "m2", Content: "hi"}))

	a, _ := c.Get("a")
	require.Len(t, a.Messages, 3)
	assert.Equal(t, "m1", a.Messages[0].ID)
	assert.Equal(t, "Hel", a.Messages[1].Content)
	assert.Equal(t, "m2", a.Messages[2].ID)
}

func TestConversationsNewestFirst(t *testing.T) {
	c := NewCache()
	c.Replace(Conversation{ID: "old", CreatedAt: t0})
	c.Replace(Conversation{ID: "new", CreatedAt: t0.Add(time.Hour)})
	c.Replace(Conversation{ID: "tie-b", CreatedAt: t0.Add(time.Minute)})
	c.Replace(Conversation{ID: "tie-a", CreatedAt: t0.Add(time.Minute)})

	var ids []string
	for _, conv := range c.Conversations() {
		ids = append(ids, conv.ID)
	}
	assert.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, ids)
}

func TestSubscribe(t *testing.T) {
	c := NewCache()
	var seen [][]Conversation
	unsubscribe := c.Subscribe(func(list []Conversation) {
		seen = append(seen, list)
	})

	c.Replace(Conversation{ID: "a", CreatedAt: t0})
	c.AppendMessage("missing", model.Message{ID: "x"})
	c.Remove("missing")
	c.Replace(Conversation{ID: "b", CreatedAt: t0.Add(time.Second)})
	require.Len(t, seen, 2)
	assert.Equal(t, "b", seen[1][0].ID)

	unsubscribe()
	c.Remove("a")
	assert.Len(t, seen, 2)
}

func TestOptimisticRollback(t *testing.T) {
	c := NewCache()
	c.Replace(Conversation{ID: "a", CreatedAt: t0, Messages: []model.Message{{ID: "m1"}}})
	c.Replace(Conversation{ID: "b", CreatedAt: t0})

	undo := Begin(c)
	c.Remove("a")
	c.AppendMessage("b", model.Message{ID: "m2"})
	undo.Rollback()

	a, ok := c.Get("a")
	require.True(t, ok)
	assert.Len(t, a.Messages, 1)
	b, _ := c.Get("b")
	assert.Nil(t, b.Messages)
}

func TestCompleteRunes(t *testing.T) {
	b := []byte("caf\xc3\xa9")
	assert.Equal(t, 5, completeRunes(b))
	assert.Equal(t, 3, completeRunes(b[:4]))
	assert.Equal(t, 0, completeRunes(nil))
	assert.Equal(t, 3, completeRunes([]byte("abc")))
}
