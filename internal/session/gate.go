package session

import "sync"

// Gate tells downstream work whether the session epoch it was started for is
// still the live one. It is written only by the Registry.
type Gate struct {
	mu      sync.RWMutex
	current uint64 // 0 while no delivery is active
}

// Accepts reports whether work carrying epoch may still produce notifications.
func (g *Gate) Accepts(epoch uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return epoch != 0 && g.current == epoch
}

// Hold admits work for epoch and keeps the gate from closing until release
// is called. When epoch is not current nothing is held and ok is false.
// Holders must not call back into the Registry before releasing.
func (g *Gate) Hold(epoch uint64) (release func(), ok bool) {
	g.mu.RLock()
	if epoch == 0 || g.current != epoch {
		g.mu.RUnlock()
		return nil, false
	}
	return g.mu.RUnlock, true
}

func (g *Gate) open(epoch uint64) {
	g.mu.Lock()
	g.current = epoch
	g.mu.Unlock()
}

// close blocks until every holder has released.
func (g *Gate) close() {
	g.mu.Lock()
	g.current = 0
	g.mu.Unlock()
}
