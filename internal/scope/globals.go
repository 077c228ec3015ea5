package scope

import "sync"

// GlobalTable maps global names to dense indices. One table is shared by
// every compilation unit of a program (top-level, eval, REPL lines), so a
// later unit can bind new globals without touching a finished Tree.
type GlobalTable struct {
	mu    sync.RWMutex
	index map[string]int
	names []string
}

func NewGlobalTable() *GlobalTable {
	return &GlobalTable{index: make(map[string]int)}
}

// Intern returns the index for name, assigning the next one if it is new.
func (g *GlobalTable) Intern(name string) int {
	g.mu.RLock()
	idx, ok := g.index[name]
	g.mu.RUnlock()
	if ok {
		return idx
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if idx, ok := g.index[name]; ok {
		return idx
	}
	idx = len(g.names)
	g.index[name] = idx
	g.names = append(g.names, name)
	return idx
}

// Lookup returns the index of an existing global.
func (g *GlobalTable) Lookup(name string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.index[name]
	return idx, ok
}

// Name returns the name bound to idx.
func (g *GlobalTable) Name(idx int) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if idx < 0 || idx >= len(g.names) {
		return ""
	}
	return g.names[idx]
}

// Len is the number of globals assigned so far.
func (g *GlobalTable) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.names)
}

// Names returns a copy of the names in index order.
func (g *GlobalTable) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}
