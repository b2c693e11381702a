package physics

import (
	"cmp"
	"math"
	"slices"

	"github.com/zeusync/worldcore/internal/core/values"
)

type Config struct {
	MaxDistance float32 `yaml:"max_distance" mapstructure:"max_distance"`
}

func DefaultConfig() Config {
	return Config{MaxDistance: 1000}
}

// Raycaster intersects rays with the bounding spheres of indexed entities.
type Raycaster struct {
	bodies BodySource
	cfg    Config
}

func NewRaycaster(bodies BodySource, cfg Config) *Raycaster {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultConfig().MaxDistance
	}
	return &Raycaster{bodies: bodies, cfg: cfg}
}

// Raycast returns every body the ray from origin along direction enters within
// MaxDistance, nearest first. A ray starting inside a body hits it at 0. A
// zero direction hits nothing.
func (r *Raycaster) Raycast(origin, direction values.Vec3) []Hit {
	dir, ok := Normalize(direction)
	if !ok {
		return nil
	}
	half := r.cfg.MaxDistance / 2
	mid := Add(origin, Scale(dir, half))

	var hits []Hit
	for _, b := range r.bodies.Bodies(mid, half, true) {
		t, ok := raySphere(origin, dir, b.Position, b.Radius)
		if !ok || t > r.cfg.MaxDistance {
			continue
		}
		hits = append(hits, Hit{Entity: b.Entity, Distance: t})
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return hits
}

func raySphere(origin, dir, center values.Vec3, radius float32) (float32, bool) {
	oc := Sub(origin, center)
	c := Dot(oc, oc) - radius*radius
	if c <= 0 {
		return 0, true
	}
	b := Dot(oc, dir)
	if b > 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	return -b - float32(math.Sqrt(float64(disc))), true
}

func Add(a, b values.Vec3) values.Vec3 {
	return values.Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func Sub(a, b values.Vec3) values.Vec3 {
	return values.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func Scale(v values.Vec3, s float32) values.Vec3 {
	return values.Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func Dot(a, b values.Vec3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func Length(v values.Vec3) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Distance is the Euclidean distance between two points.
func Distance(a, b values.Vec3) float32 {
	return Length(Sub(a, b))
}

// Normalize returns v scaled to unit length; false for a zero or non-finite v.
func Normalize(v values.Vec3) (values.Vec3, bool) {
	l := Length(v)
	if l == 0 || math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
		return values.Vec3{}, false
	}
	return Scale(v, 1/l), true
}
