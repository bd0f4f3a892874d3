package service

import (
	"sync"

	"github.com/google/uuid"
)

// portfolioLocks serializes ledger writers per portfolio. Entries are dropped
// once nobody holds or waits for them.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*portfolioLock
}

type portfolioLock struct {
	mu   sync.Mutex
	refs int
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[uuid.UUID]*portfolioLock)}
}

// lock blocks until the portfolio is free and returns its unlock func
func (l *portfolioLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &portfolioLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// writeGenerations counts committed writes per portfolio within this process.
// A holdings read compares the count before and after it fills the cache, so a
// result that raced a write is not left behind.
type writeGenerations struct {
	mu   sync.Mutex
	gens map[uuid.UUID]uint64
}

func newWriteGenerations() *writeGenerations {
	return &writeGenerations{gens: make(map[uuid.UUID]uint64)}
}

func (g *writeGenerations) current(id uuid.UUID) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[id]
}

func (g *writeGenerations) bump(id uuid.UUID) {
	g.mu.Lock()
	g.gens[id]++
	g.mu.Unlock()
}
