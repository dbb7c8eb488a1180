package table

import "sync"

// gate is a one-shot confirmation: a scene arms it and suspends on the
// returned channel, the confirm control closes it. A confirm with nothing
// armed is dropped.
type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func (g *gate) arm() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ch = make(chan struct{})
	return g.ch
}

func (g *gate) notify() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		return false
	}
	close(g.ch)
	g.ch = nil
	return true
}

// disarm forgets ch if it is still the armed one.
func (g *gate) disarm(ch <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch != nil && (<-chan struct{})(g.ch) == ch {
		g.ch = nil
	}
}
