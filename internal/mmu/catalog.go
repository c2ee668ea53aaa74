package mmu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"mosim.ai/internal/mmi"
)

var (
	ErrUnknownMMU   = errors.New("unknown mmu")
	ErrDuplicateMMU = errors.New("duplicate mmu")
)

// ID identifies a loadable MMU type (the description ID, not an instance).
type ID string

type Factory struct {
	Description mmi.MMUDescription
	New         func(env Env) MotionModelUnit
}

// Catalog is the set of MMU types a host can instantiate.
type Catalog struct {
	mu        sync.RWMutex
	factories map[ID]Factory
	order     []ID
}

func NewCatalog() *Catalog {
	return &Catalog{factories: map[ID]Factory{}}
}

func (c *Catalog) Register(f Factory) error {
	id := ID(strings.TrimSpace(f.Description.ID))
	if id == "" {
		return fmt.Errorf("register %q: missing description id", f.Description.Name)
	}
	if f.New == nil {
		return fmt.Errorf("register %s: nil constructor", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[id]; ok {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateMMU)
	}
	c.factories[id] = f
	c.order = append(c.order, id)
	return nil
}

// MustRegister is for package-level wiring of bundled MMUs.
func (c *Catalog) MustRegister(fs ...Factory) *Catalog {
	for _, f := range fs {
		if err := c.Register(f); err != nil {
			panic(err)
		}
	}
	return c
}

// Resolve maps a requested identifier (ID, or name as a fallback) to a factory.
func (c *Catalog) Resolve(key string) (ID, Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if f, ok := c.factories[ID(key)]; ok {
		return ID(key), f, nil
	}
	for _, id := range c.order {
		if c.factories[id].Description.Name == key {
			return id, c.factories[id], nil
		}
	}
	return "", Factory{}, fmt.Errorf("%s: %w", key, ErrUnknownMMU)
}

// Descriptions lists the loadable MMUs in registration order.
func (c *Catalog) Descriptions() []mmi.MMUDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]mmi.MMUDescription, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.factories[id].Description)
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
