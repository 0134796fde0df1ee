package client

// Optimistic is an undo point taken before a cache change that the server
// may still refuse.
type Optimistic struct {
	cache *Cache
	saved Snapshot
}

func Begin(c *Cache) Optimistic {
	return Optimistic{cache: c, saved: c.Snapshot()}
}

// Rollback puts the cache back to the state at Begin.
func (o Optimistic) Rollback() {
	o.cache.Restore(o.saved)
}
