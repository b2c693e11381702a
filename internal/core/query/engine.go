package query

import (
	"sync"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/store"
	"github.com/zeusync/worldcore/internal/core/values"
)

type compiled struct {
	owner string
	spec  Spec

	// watermarks parallels spec.Changed.
	watermarks []uint64

	// Previous match for Spawn and Despawn handles, in spawn order.
	prev      []models.EntityID
	prevSet   map[models.EntityID]struct{}
	prevProjs map[models.EntityID][]values.Value
}

// Engine owns the compiled handles of every guest instance.
type Engine struct {
	mu      sync.Mutex
	store   *store.Store
	handles map[Handle]*compiled
	next    Handle
	log     log.Log
}

type Option func(*Engine)

func WithLogger(l log.Log) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		handles: make(map[Handle]*compiled),
		log:     log.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("query")
	return e
}

// Compile registers spec without an owner.
func (e *Engine) Compile(spec Spec) Handle {
	return e.CompileFor("", spec)
}

// CompileFor registers spec on behalf of owner. Equal specs get distinct
// handles with independent state.
func (e *Engine) CompileFor(owner string, spec Spec) Handle {
	spec = spec.normalized()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	h := e.next
	e.handles[h] = &compiled{
		owner:      owner,
		spec:       spec,
		watermarks: make([]uint64, len(spec.Changed)),
		prevSet:    make(map[models.EntityID]struct{}),
		prevProjs:  make(map[models.EntityID][]values.Value),
	}
	e.log.Debug("query compiled",
		log.Handle(uint64(h)),
		log.Module(owner),
		log.Stringer("event", spec.Event),
	)
	return h
}

// Evaluate runs h against the current store state and advances its change
// state. It is false for an unknown handle.
func (e *Engine) Evaluate(h Handle) ([]Row, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.handles[h]
	if !ok {
		return nil, false
	}
	return e.evaluateLocked(c), true
}

// EvaluateFor is Evaluate restricted to handles compiled for owner.
func (e *Engine) EvaluateFor(owner string, h Handle) ([]Row, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.handles[h]
	if !ok || c.owner != owner {
		return nil, false
	}
	return e.evaluateLocked(c), true
}

func (e *Engine) evaluateLocked(c *compiled) []Row {
	var rows []Row
	e.store.View(func(v store.View) {
		switch c.spec.Event {
		case Spawn:
			rows = c.spawned(v)
		case Despawn:
			rows = c.despawned(v)
		default:
			rows = c.frame(v)
		}
	})
	return rows
}

// Drop releases h. It is false if h was not live.
func (e *Engine) Drop(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.handles[h]; !ok {
		return false
	}
	delete(e.handles, h)
	return true
}

// DropAll releases every handle compiled for owner and reports how many.
func (e *Engine) DropAll(owner string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for h, c := range e.handles {
		if c.owner == owner {
			delete(e.handles, h)
			n++
		}
	}
	if n > 0 {
		e.log.Debug("queries dropped", log.Module(owner), log.Int("count", n))
	}
	return n
}

// Len is the number of live handles.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func (c *compiled) frame(v store.View) []Row {
	var rows []Row
	for _, id := range c.match(v) {
		if !c.changedSince(v, id) {
			continue
		}
		rows = append(rows, Row{Entity: id, Values: c.project(v, id)})
	}
	now := v.Version()
	for i := range c.watermarks {
		c.watermarks[i] = now
	}
	return rows
}

func (c *compiled) changedSince(v store.View, id models.EntityID) bool {
	if len(c.spec.Changed) == 0 {
		return true
	}
	for i, idx := range c.spec.Changed {
		if ver, ok := v.SlotVersion(id, idx); ok && ver > c.watermarks[i] {
			return true
		}
	}
	return false
}

func (c *compiled) spawned(v store.View) []Row {
	current := c.match(v)
	var rows []Row
	for _, id := range current {
		if _, seen := c.prevSet[id]; !seen {
			rows = append(rows, Row{Entity: id, Values: c.project(v, id)})
		}
	}
	c.remember(v, current, false)
	return rows
}

func (c *compiled) despawned(v store.View) []Row {
	current := c.match(v)
	now := make(map[models.EntityID]struct{}, len(current))
	for _, id := range current {
		now[id] = struct{}{}
	}
	var rows []Row
	for _, id := range c.prev {
		if _, still := now[id]; !still {
			rows = append(rows, Row{Entity: id, Values: c.prevProjs[id]})
		}
	}
	c.remember(v, current, true)
	return rows
}

// remember stores the current match; projections are only kept when a later
// Despawn evaluation needs them.
func (c *compiled) remember(v store.View, current []models.EntityID, projections bool) {
	c.prev = current
	c.prevSet = make(map[models.EntityID]struct{}, len(current))
	for _, id := range current {
		c.prevSet[id] = struct{}{}
	}
	if !projections {
		return
	}
	c.prevProjs = make(map[models.EntityID][]values.Value, len(current))
	for _, id := range current {
		c.prevProjs[id] = c.project(v, id)
	}
}

// match lists entities satisfying include and exclude, in spawn order. The
// smallest include membership drives the scan.
func (c *compiled) match(v store.View) []models.EntityID {
	var candidates []models.EntityID
	if len(c.spec.Include) == 0 {
		candidates = v.Entities()
	} else {
		driver := c.spec.Include[0]
		for _, idx := range c.spec.Include[1:] {
			if v.Count(idx) < v.Count(driver) {
				driver = idx
			}
		}
		if v.Count(driver) == 0 {
			return nil
		}
		candidates = v.Members(driver)
	}

	out := candidates[:0]
	for _, id := range candidates {
		if c.accepts(v, id) {
			out = append(out, id)
		}
	}
	v.SortBySpawn(out)
	return out
}

func (c *compiled) accepts(v store.View, id models.EntityID) bool {
	for _, idx := range c.spec.Include {
		if !v.Has(id, idx) {
			return false
		}
	}
	for _, idx := range c.spec.Exclude {
		if v.Has(id, idx) {
			return false
		}
	}
	return true
}

func (c *compiled) project(v store.View, id models.EntityID) []values.Value {
	vals := make([]values.Value, 0, len(c.spec.Components))
	for _, idx := range c.spec.Components {
		if val, ok := v.Get(id, idx); ok {
			vals = append(vals, val)
		}
	}
	return vals
}
