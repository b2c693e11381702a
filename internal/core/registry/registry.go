// Package registry maps component names to dense, stable component indices.
//
// Registration happens during world setup, from built-ins and manifests.
// Lookups afterwards are pure reads.
package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/values"
)

var (
	ErrTypeConflict = errors.New("component already registered with a different type")
	ErrSealed       = errors.New("registry is sealed")
	ErrInvalidName  = errors.New("invalid component name")
)

// Separator joins the segments of a component name.
const Separator = "::"

// Component describes one registered component type.
type Component struct {
	Index       models.ComponentIndex
	Name        string
	Type        values.Type
	Description string
}

type Registry struct {
	mu     sync.RWMutex
	byName map[string]models.ComponentIndex
	comps  []Component
	sealed bool
	log    log.Log
}

type Option func(*Registry)

func WithLogger(l log.Log) Option {
	return func(r *Registry) {
		r.log = l
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		byName: make(map[string]models.ComponentIndex),
		log:    log.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register assigns the next index to name. Registering the same name with the
// same type again returns the existing index.
func (r *Registry) Register(name string, t values.Type) (models.ComponentIndex, error) {
	return r.RegisterComponent(Component{Name: name, Type: t})
}

// RegisterComponent is Register with a description. c.Index is ignored.
func (r *Registry) RegisterComponent(c Component) (models.ComponentIndex, error) {
	if err := ValidateName(c.Name); err != nil {
		return 0, err
	}
	if err := c.Type.Validate(); err != nil {
		return 0, fmt.Errorf("component %s: %w", c.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byName[c.Name]; ok {
		existing := r.comps[idx]
		if existing.Type != c.Type {
			return 0, fmt.Errorf("%w: %s is %s, not %s", ErrTypeConflict, c.Name, existing.Type, c.Type)
		}
		return idx, nil
	}
	if r.sealed {
		return 0, fmt.Errorf("%w: cannot register %s", ErrSealed, c.Name)
	}

	c.Index = models.ComponentIndex(len(r.comps))
	r.comps = append(r.comps, c)
	r.byName[c.Name] = c.Index

	r.log.Debug("component registered",
		log.String("name", c.Name),
		log.Component(c.Index),
		log.Stringer("type", c.Type),
	)
	return c.Index, nil
}

// Lookup returns the index registered for name.
func (r *Registry) Lookup(name string) (models.ComponentIndex, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	return idx, ok
}

// Describe returns the component registered at idx.
func (r *Registry) Describe(idx models.ComponentIndex) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(idx) >= len(r.comps) {
		return Component{}, false
	}
	return r.comps[idx], true
}

// TypeOf returns the registered type of idx.
func (r *Registry) TypeOf(idx models.ComponentIndex) (values.Type, bool) {
	c, ok := r.Describe(idx)
	return c.Type, ok
}

// Components returns every component in index order.
func (r *Registry) Components() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Component, len(r.comps))
	copy(out, r.comps)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.comps)
}

// Seal rejects any further new registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Fingerprint hashes (index, name, type) of every component in index order.
// Two registries agree on every index exactly when their fingerprints match.
func (r *Registry) Fingerprint() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := xxhash.New()
	var buf [6]byte
	for _, c := range r.comps {
		binary.LittleEndian.PutUint32(buf[:4], uint32(c.Index))
		buf[4] = byte(c.Type.Kind)
		buf[5] = byte(c.Type.Elem)
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(c.Name)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ValidateName checks that name is one or more non-empty segments of letters,
// digits and underscores joined by "::".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for _, seg := range strings.Split(name, Separator) {
		if seg == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidName, name)
		}
		for _, ch := range seg {
			if !isNameRune(ch) {
				return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, ch)
			}
		}
	}
	return nil
}

func isNameRune(ch rune) bool {
	return ch == '_' ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// Join builds a component name from segments.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}
