package scrape

import (
	"context"
	"sort"
	"sync"
)

// call is one attempt chain whose result is shared with every joiner.
type call struct {
	done   chan struct{}
	result *Result
	err    error
}

func (c *call) finish(res *Result, err error) {
	c.result = res
	c.err = err
	close(c.done)
}

// wait blocks until the owning chain settles or ctx is done.
func (c *call) wait(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// inflightMap holds at most one joinable call per effective ref.
type inflightMap struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newInflightMap() *inflightMap {
	return &inflightMap{calls: make(map[string]*call)}
}

// acquire returns the existing call for ref when joinable is set and one is
// registered (owner=false). Otherwise it registers a new call, replacing any
// previous entry, and returns owner=true.
func (m *inflightMap) acquire(ref string, joinable bool) (c *call, owner bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if joinable {
		if existing, ok := m.calls[ref]; ok {
			return existing, false
		}
	}
	c = &call{done: make(chan struct{})}
	m.calls[ref] = c
	return c, true
}

// release removes the entry for ref if it still belongs to c.
func (m *inflightMap) release(ref string, c *call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls[ref] == c {
		delete(m.calls, ref)
	}
}

func (m *inflightMap) refs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for ref := range m.calls {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
