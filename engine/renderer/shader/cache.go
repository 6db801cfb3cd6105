package shader

import (
	"maps"
	"slices"
	"sync"
)

type cache struct {
	mu      sync.Mutex
	entries map[string]*Program
}

// Cache maps variant keys to compiled programs. A key stored with a nil program records a
// failed compile, which is distinct from a key that was never attempted.
type Cache interface {
	// Lookup returns the cached program for key.
	//
	// Parameters:
	//   - key: the variant key built by BuildKey
	//
	// Returns:
	//   - *Program: the program, nil for a cached failure or a miss
	//   - bool: true if the key was attempted before, whether it succeeded or not
	Lookup(key string) (*Program, bool)

	// Store records the result of compiling key. A nil program caches a failure.
	Store(key string, p *Program)

	// Invalidate drops every variant of the named source and returns the dropped programs so
	// the caller can release their device handles.
	//
	// Parameters:
	//   - name: the shader source name
	//
	// Returns:
	//   - []*Program: the successfully compiled programs that were removed
	Invalidate(name string) []*Program

	// Clear drops every entry and returns the compiled programs that were removed.
	Clear() []*Program

	// Len returns the number of cached keys, failures included.
	Len() int

	// Keys returns the cached keys in ascending order.
	Keys() []string
}

var _ Cache = &cache{}

// NewCache creates an empty variant cache.
func NewCache() Cache {
	return &cache{entries: make(map[string]*Program)}
}

func (c *cache) Lookup(key string) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok
}

func (c *cache) Store(key string, p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = p
}

func (c *cache) Invalidate(name string) []*Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped []*Program
	for key, p := range c.entries {
		if keySource(key) != name {
			continue
		}
		if p != nil {
			dropped = append(dropped, p)
		}
		delete(c.entries, key)
	}
	return dropped
}

func (c *cache) Clear() []*Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped []*Program
	for _, p := range c.entries {
		if p != nil {
			dropped = append(dropped, p)
		}
	}
	clear(c.entries)
	return dropped
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.entries))
}

// keySource returns the source name part of a variant key.
func keySource(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ';' {
			return key[:i]
		}
	}
	return key
}
