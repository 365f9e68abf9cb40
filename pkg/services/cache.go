package services

import (
	"sync"

	"docs-editor/pkg/models"

	"golang.org/x/sync/singleflight"
)

// TreeCache keeps the last built tree until a write invalidates it.
// Concurrent misses share a single walk.
type TreeCache struct {
	builder *TreeBuilder
	group   singleflight.Group

	mu     sync.Mutex
	tree   []models.ContentNode
	loaded bool
	gen    uint64
}

func NewTreeCache(builder *TreeBuilder) *TreeCache {
	return &TreeCache{builder: builder}
}

// Get returns the cached tree, walking the content root on a miss.
func (c *TreeCache) Get() ([]models.ContentNode, error) {
	c.mu.Lock()
	if c.loaded {
		tree := c.tree
		c.mu.Unlock()
		return tree, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do("tree", func() (interface{}, error) {
		tree, err := c.builder.Build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// a write that landed during the walk wins; keep the result uncached
		if c.gen == gen {
			c.tree = tree
			c.loaded = true
		}
		c.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.ContentNode), nil
}

// Invalidate drops the cached tree so the next Get walks again.
func (c *TreeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.tree = nil
	c.gen++
}
