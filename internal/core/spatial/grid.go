// Package spatial indexes entity positions on a uniform grid of cubic cells.
//
// The grid listens to store mutations of the translation and radius
// components; nothing else writes to it.
package spatial

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/values"
)

type Config struct {
	CellSize      float32 `yaml:"cell_size" mapstructure:"cell_size"`
	DefaultRadius float32 `yaml:"default_radius" mapstructure:"default_radius"`
}

func DefaultConfig() Config {
	return Config{
		CellSize:      8,
		DefaultRadius: 0.5,
	}
}

// Body is an indexed entity: its position and bounding sphere radius.
type Body struct {
	Entity   models.EntityID
	Position values.Vec3
	Radius   float32
}

type cell [3]int32

type entry struct {
	body   Body
	cell   cell
	placed bool
	radius bool
}

type Grid struct {
	mu          sync.RWMutex
	cfg         Config
	translation models.ComponentIndex
	radius      models.ComponentIndex
	buckets     map[cell]map[models.EntityID]struct{}
	entries     map[models.EntityID]*entry
	maxRadius   float32
}

// NewGrid indexes the entities carrying the translation component; radius
// overrides cfg.DefaultRadius per entity.
func NewGrid(cfg Config, translation, radius models.ComponentIndex) *Grid {
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultConfig().CellSize
	}
	if cfg.DefaultRadius < 0 {
		cfg.DefaultRadius = 0
	}
	return &Grid{
		cfg:         cfg,
		translation: translation,
		radius:      radius,
		buckets:     make(map[cell]map[models.EntityID]struct{}),
		entries:     make(map[models.EntityID]*entry),
		maxRadius:   cfg.DefaultRadius,
	}
}

func (g *Grid) cellOf(p values.Vec3) cell {
	return cell{g.coord(p[0]), g.coord(p[1]), g.coord(p[2])}
}

func (g *Grid) coord(v float32) int32 {
	c := math.Floor(float64(v) / float64(g.cfg.CellSize))
	switch {
	case math.IsNaN(c):
		return 0
	case c < math.MinInt32:
		return math.MinInt32
	case c > math.MaxInt32-1:
		return math.MaxInt32 - 1
	default:
		return int32(c)
	}
}

// ComponentChanged tracks translation and radius writes.
func (g *Grid) ComponentChanged(id models.EntityID, idx models.ComponentIndex, v values.Value, present bool) {
	if idx != g.translation && idx != g.radius {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.entries[id]
	if e == nil {
		e = &entry{body: Body{Entity: id, Radius: g.cfg.DefaultRadius}}
		g.entries[id] = e
	}

	switch idx {
	case g.translation:
		pos, ok := v.(values.Vec3)
		if !present || !ok {
			g.unplaceLocked(e)
			break
		}
		g.placeLocked(e, pos)
	case g.radius:
		r, ok := v.(values.F32)
		if present && ok && r >= 0 {
			e.body.Radius = float32(r)
			e.radius = true
			g.maxRadius = max(g.maxRadius, float32(r))
		} else {
			e.body.Radius = g.cfg.DefaultRadius
			e.radius = false
		}
	}

	if !e.placed && !e.radius {
		delete(g.entries, id)
	}
}

func (g *Grid) placeLocked(e *entry, pos values.Vec3) {
	c := g.cellOf(pos)
	if e.placed && e.cell != c {
		g.unbucketLocked(e)
	}
	if !e.placed || e.cell != c {
		b := g.buckets[c]
		if b == nil {
			b = make(map[models.EntityID]struct{})
			g.buckets[c] = b
		}
		b[e.body.Entity] = struct{}{}
	}
	e.body.Position = pos
	e.cell = c
	e.placed = true
}

func (g *Grid) unplaceLocked(e *entry) {
	if e.placed {
		g.unbucketLocked(e)
	}
	e.placed = false
}

func (g *Grid) unbucketLocked(e *entry) {
	b := g.buckets[e.cell]
	delete(b, e.body.Entity)
	if len(b) == 0 {
		delete(g.buckets, e.cell)
	}
}

func (g *Grid) EntityDespawned(id models.EntityID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e := g.entries[id]; e != nil {
		g.unplaceLocked(e)
		delete(g.entries, id)
	}
}

// Within lists entities whose position lies within radius of center, nearest
// first.
func (g *Grid) Within(center values.Vec3, radius float32) []models.EntityID {
	bodies := g.Bodies(center, radius, false)
	ids := make([]models.EntityID, len(bodies))
	for i, b := range bodies {
		ids[i] = b.Entity
	}
	return ids
}

// Bodies lists bodies near center, nearest first. With spheres set, a body is
// included when its bounding sphere touches the query sphere; otherwise its
// position must lie inside.
func (g *Grid) Bodies(center values.Vec3, radius float32, spheres bool) []Body {
	if radius < 0 || math.IsNaN(float64(radius)) {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	reach := radius
	if spheres {
		reach += g.maxRadius
	}

	var out []Body
	consider := func(e *entry) {
		limit := radius
		if spheres {
			limit += e.body.Radius
		}
		if dist(center, e.body.Position) <= limit {
			out = append(out, e.body)
		}
	}

	side := 2*float64(reach)/float64(g.cfg.CellSize) + 1
	if math.IsInf(side, 0) || math.IsNaN(side) || side*side*side > float64(len(g.buckets)) {
		for _, e := range g.entries {
			if e.placed {
				consider(e)
			}
		}
	} else {
		lo := g.cellOf(values.Vec3{center[0] - reach, center[1] - reach, center[2] - reach})
		hi := g.cellOf(values.Vec3{center[0] + reach, center[1] + reach, center[2] + reach})
		for x := lo[0]; x <= hi[0]; x++ {
			for y := lo[1]; y <= hi[1]; y++ {
				for z := lo[2]; z <= hi[2]; z++ {
					for id := range g.buckets[cell{x, y, z}] {
						consider(g.entries[id])
					}
				}
			}
		}
	}

	slices.SortFunc(out, func(a, b Body) int {
		if c := cmp.Compare(dist(center, a.Position), dist(center, b.Position)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Entity.ID0, b.Entity.ID0); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity.ID1, b.Entity.ID1)
	})
	return out
}

// Len is the number of placed entities.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, e := range g.entries {
		if e.placed {
			n++
		}
	}
	return n
}

func (g *Grid) CellSize() float32 {
	return g.cfg.CellSize
}

func dist(a, b values.Vec3) float32 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}
