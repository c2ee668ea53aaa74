// Package registry hands out session-scoped identifiers and keeps name lookups.
package registry

import (
	"strconv"
	"sync"
)

// Generator issues scene object and avatar IDs. Both counters share one lock and
// start at 1; IDs are unique within one running session only.
type Generator struct {
	mu         sync.Mutex
	nextObject uint64
	nextAvatar uint64
}

func NewGenerator() *Generator {
	return &Generator{nextObject: 1, nextAvatar: 1}
}

func (g *Generator) CreateSceneObjectID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nextObject == 0 {
		g.nextObject = 1
	}
	id := g.nextObject
	g.nextObject++
	return strconv.FormatUint(id, 10)
}

func (g *Generator) CreateAvatarID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nextAvatar == 0 {
		g.nextAvatar = 1
	}
	id := g.nextAvatar
	g.nextAvatar++
	return strconv.FormatUint(id, 10)
}

// Reset restarts both sequences, e.g. when a new session begins.
func (g *Generator) Reset() {
	g.mu.Lock()
	g.nextObject = 1
	g.nextAvatar = 1
	g.mu.Unlock()
}

// Counters reports the next IDs that would be issued.
func (g *Generator) Counters() (nextObject, nextAvatar uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextObject, g.nextAvatar
}
