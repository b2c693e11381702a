// Package arena is a demo guest: orcs walk toward the arena centre, shoot
// whatever is in front of them and are removed when their health runs out.
package arena

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/registry"
	"github.com/zeusync/worldcore/internal/core/systems/physics"
	"github.com/zeusync/worldcore/internal/core/values"
	"github.com/zeusync/worldcore/sdk/go/guest"
)

const (
	// HitEvent carries a target and damage amount.
	HitEvent = "arena/hit"
	// WaveEvent spawns another ring of orcs.
	WaveEvent = "arena/wave"
)

//go:embed components.yaml
var manifest []byte

// Manifest declares the arena components. The host applies it before
// loading the module.
func Manifest() (*registry.Manifest, error) {
	return registry.LoadManifest(bytes.NewReader(manifest))
}

type Config struct {
	Orcs     int     `yaml:"orcs" mapstructure:"orcs"`
	Radius   float32 `yaml:"radius" mapstructure:"radius"`
	Speed    float32 `yaml:"speed" mapstructure:"speed"`
	Health   float32 `yaml:"health" mapstructure:"health"`
	Damage   float32 `yaml:"damage" mapstructure:"damage"`
	Range    float32 `yaml:"range" mapstructure:"range"`
	HitEvery int     `yaml:"hit_every" mapstructure:"hit_every"`
	Model    string  `yaml:"model" mapstructure:"model"`
}

func DefaultConfig() Config {
	return Config{
		Orcs:     8,
		Radius:   20,
		Speed:    2,
		Health:   30,
		Damage:   10,
		Range:    6,
		HitEvery: 5,
		Model:    "models/orc.glb",
	}
}

// Stats counts what the module observed.
type Stats struct {
	Frames  int
	Spawned int
	Fallen  int
	Hits    int
	Wounded int
	Waves   int
}

type components struct {
	translation guest.Component[values.Vec3]
	name        guest.Component[values.String]
	model       guest.Component[values.ObjectRef]
	health      guest.Component[values.F32]
	dead        guest.Component[values.Empty]
	velocity    guest.Component[values.Vec3]
	tags        guest.Component[values.List[values.String]]
	target      guest.Component[values.Option[values.EntityRef]]
	damage      guest.Component[values.F32]
	score       guest.Component[values.U32]
}

type queries struct {
	movers  guest.Query
	corpses guest.Query
	wounded guest.Query
	arrived guest.Query
	fallen  guest.Query
}

// Module implements guest.Module.
type Module struct {
	cfg Config
	c   components
	q   queries

	fingerprint uint64
	last        float32
	model       values.ObjectRef
	named       int
	stats       Stats
}

func New(cfg Config) *Module {
	def := DefaultConfig()
	if cfg.HitEvery <= 0 {
		cfg.HitEvery = def.HitEvery
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	return &Module{cfg: cfg}
}

func (m *Module) Stats() Stats {
	return m.stats
}

func (m *Module) Fingerprint() uint64 {
	return m.fingerprint
}

func (m *Module) Init(g *guest.Guest) {
	m.fingerprint = g.SchemaFingerprint()
	m.c = components{
		translation: guest.MustLookup[values.Vec3](g, registry.Translation),
		name:        guest.MustLookup[values.String](g, registry.Name),
		model:       guest.MustLookup[values.ObjectRef](g, registry.Model),
		health:      guest.MustLookup[values.F32](g, "arena::health"),
		dead:        guest.MustLookup[values.Empty](g, "arena::dead"),
		velocity:    guest.MustLookup[values.Vec3](g, "arena::velocity"),
		tags:        guest.MustLookup[values.List[values.String]](g, "arena::tags"),
		target:      guest.MustLookup[values.Option[values.EntityRef]](g, "arena::target"),
		damage:      guest.MustLookup[values.F32](g, "arena::damage"),
		score:       guest.MustLookup[values.U32](g, "arena::score"),
	}
	c := m.c

	m.q = queries{
		movers: guest.NewQuery(c.translation.Index, c.velocity.Index).
			Include(c.translation.Index, c.velocity.Index).
			Exclude(c.dead.Index).
			Build(g),
		corpses: guest.NewQuery().Include(c.dead.Index).Build(g),
		wounded: guest.NewQuery(c.health.Index).Include(c.health.Index).Changed(c.health.Index).Build(g),
		arrived: guest.NewQuery(c.name.Index).Include(c.name.Index, c.health.Index).On(query.Spawn).Build(g),
		fallen:  guest.NewQuery(c.name.Index).Include(c.name.Index, c.health.Index).On(query.Despawn).Build(g),
	}

	m.model = values.ObjectRef{ID: m.cfg.Model}
	if url, ok := g.AssetURL(m.cfg.Model); ok {
		m.model.ID = url
	}
	m.ring(g)

	res := g.Resources()
	if !c.score.Has(g, res) {
		c.score.Set(g, res, 0)
	}
	g.Subscribe(HitEvent)
	g.Subscribe(WaveEvent)
}

// ring spawns cfg.Orcs orcs evenly spaced on the arena edge.
func (m *Module) ring(g *guest.Guest) {
	c := m.c
	for i := 0; i < m.cfg.Orcs; i++ {
		angle := 2 * math.Pi * float64(i) / float64(m.cfg.Orcs)
		pos := values.Vec3{
			m.cfg.Radius * float32(math.Cos(angle)),
			0,
			m.cfg.Radius * float32(math.Sin(angle)),
		}
		dir, _ := physics.Normalize(physics.Scale(pos, -1))
		name := fmt.Sprintf("orc-%c", rune('a'+m.named%26))
		if lap := m.named / 26; lap > 0 {
			name = fmt.Sprintf("%s%d", name, lap)
		}
		m.named++
		g.Spawn(values.ComponentSet{
			c.name.Entry(values.String(name)),
			c.translation.Entry(pos),
			c.velocity.Entry(physics.Scale(dir, m.cfg.Speed)),
			c.health.Entry(values.F32(m.cfg.Health)),
			c.model.Entry(m.model),
			c.tags.Entry(values.List[values.String]{"orc", "melee"}),
		})
	}
}

func (m *Module) Exec(g *guest.Guest, ctx guest.Context, event string, data values.ComponentSet) {
	switch event {
	case guest.FrameEvent:
		dt := ctx.Time - m.last
		m.last = ctx.Time
		m.frame(g, dt)
	case HitEvent:
		m.hit(g, data)
	case WaveEvent:
		m.stats.Waves++
		m.ring(g)
	}
}

func (m *Module) frame(g *guest.Guest, dt float32) {
	m.stats.Frames++
	c := m.c

	m.stats.Spawned += len(m.q.arrived.Eval())
	if n := len(m.q.fallen.Eval()); n > 0 {
		m.stats.Fallen += n
		res := g.Resources()
		score, _ := c.score.Get(g, res)
		c.score.Set(g, res, score+values.U32(n))
	}

	for _, row := range m.q.corpses.Eval() {
		g.Despawn(row.Entity)
	}

	m.q.movers.Each(func(row query.Row) {
		pos, ok1 := guest.Of[values.Vec3](row.Values, 0)
		vel, ok2 := guest.Of[values.Vec3](row.Values, 1)
		if !ok1 || !ok2 {
			return
		}
		next := physics.Add(pos, physics.Scale(vel, dt))
		if physics.Length(next) < 1 {
			// reached the centre, turn around
			c.velocity.Set(g, row.Entity, physics.Scale(vel, -1))
		}
		c.translation.Set(g, row.Entity, next)

		if m.stats.Frames%m.cfg.HitEvery == 0 {
			m.shoot(g, row.Entity, next, vel)
		}
	})

	for _, row := range m.q.wounded.Eval() {
		hp, _ := guest.Of[values.F32](row.Values, 0)
		if hp < values.F32(m.cfg.Health) {
			m.stats.Wounded++
		}
	}
}

// shoot fires along the shooter's heading and sends a hit for the nearest
// other body within range.
func (m *Module) shoot(g *guest.Guest, self models.EntityID, origin, dir values.Vec3) {
	if len(m.near(g, self, origin, m.cfg.Range)) == 0 {
		return
	}
	for _, hit := range g.Raycast(origin, dir) {
		if hit.Entity == self {
			continue
		}
		if hit.Distance > m.cfg.Range {
			return
		}
		g.Send(HitEvent, values.ComponentSet{
			m.c.target.Entry(values.Some(values.EntityRef(hit.Entity))),
			m.c.damage.Entry(values.F32(m.cfg.Damage)),
		})
		return
	}
}

// near lists the entities other than self within radius of pos.
func (m *Module) near(g *guest.Guest, self models.EntityID, pos values.Vec3, radius float32) []models.EntityID {
	var out []models.EntityID
	for _, other := range g.InArea(pos, radius) {
		if other != self {
			out = append(out, other)
		}
	}
	return out
}

func (m *Module) hit(g *guest.Guest, data values.ComponentSet) {
	c := m.c
	v, ok := data.Get(c.target.Index)
	if !ok {
		return
	}
	opt, ok := v.(values.Option[values.EntityRef])
	if !ok || !opt.Present {
		return
	}
	target := models.EntityID(opt.Value)
	if !g.Exists(target) {
		return
	}
	dmg := values.F32(m.cfg.Damage)
	if d, ok := data.Get(c.damage.Index); ok {
		if f, ok := d.(values.F32); ok {
			dmg = f
		}
	}

	m.stats.Hits++
	hp, ok := c.health.Get(g, target)
	if !ok {
		return
	}
	hp -= dmg
	if hp <= 0 {
		g.SetMany(target, values.ComponentSet{c.health.Entry(0), c.dead.Entry(values.Empty{})})
		return
	}
	c.health.Set(g, target, hp)
}
