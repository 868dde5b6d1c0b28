package ssi

import "sync"

// Cache keeps the DIDs of the other ends in memory, because parsing verkeys
// each time is waste.
type Cache struct {
	cache map[string]*DID
	sync.RWMutex
}

func (c *Cache) Add(d *DID) {
	c.Lock()
	defer c.Unlock()

	if c.cache == nil {
		c.cache = make(map[string]*DID)
	}
	c.cache[d.VerKey()] = d
}

// OutDID returns the cached DID of the verkey or creates a new one.
func (c *Cache) OutDID(verKey string) (*DID, error) {
	c.RLock()
	d, ok := c.cache[verKey]
	c.RUnlock()
	if ok {
		return d, nil
	}
	d, err := NewOutDID(verKey)
	if err != nil {
		return nil, err
	}
	c.Add(d)
	return d, nil
}
