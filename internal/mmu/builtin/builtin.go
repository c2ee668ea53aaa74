// Package builtin holds the MMUs shipped with the adapter binary.
package builtin

import "mosim.ai/internal/mmu"

func LookAtFactory() mmu.Factory {
	return mmu.Factory{Description: LookAtDescription(), New: NewLookAt}
}

func IdleFactory() mmu.Factory { return mmu.Factory{Description: IdleDescription(), New: NewIdle} }

func WalkFactory() mmu.Factory { return mmu.Factory{Description: WalkDescription(), New: NewWalk} }

func ReachFactory() mmu.Factory {
	return mmu.Factory{Description: ReachDescription(), New: NewReach}
}

// Catalog returns a fresh catalog holding every bundled MMU.
func Catalog() *mmu.Catalog {
	return mmu.NewCatalog().MustRegister(LookAtFactory(), IdleFactory(), WalkFactory(), ReachFactory())
}
