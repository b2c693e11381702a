// Package guest is the guest-side SDK: a typed API over the raw host imports.
//
// Every call opens a scope on the guest instance. Argument buffers are
// allocated in that scope, result buffers the host hands over are adopted by
// it, and all of them are freed before the call returns. A protocol error
// traps: it unwinds the guest's current export call back to the runtime.
package guest

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/codec"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/systems/physics"
	"github.com/zeusync/worldcore/internal/core/values"
)

type Guest struct {
	inst *abi.Instance
	imp  Imports
}

func New(inst *abi.Instance, imp Imports) *Guest {
	return &Guest{inst: inst, imp: imp}
}

// Instance is the guest's own side of the boundary.
func (g *Guest) Instance() *abi.Instance {
	return g.inst
}

type call struct {
	mem *abi.Memory
	enc *codec.Encoder
	dec *codec.Decoder
}

func (g *Guest) call(op string, fn func(c call) error) {
	scope := g.inst.Begin()
	err := fn(call{
		mem: g.inst.Memory(),
		enc: codec.NewEncoder(g.inst.Memory(), scope),
		dec: codec.NewDecoder(g.inst.Memory(), codec.WithBufferHook(scope.Adopt)),
	})
	if rerr := scope.Release(); err == nil {
		err = rerr
	}
	if err != nil {
		abi.Raise(op, err)
	}
}

// presence reads a 0/1 flag byte.
func (c call) presence(at uint32) (bool, error) {
	f, err := c.mem.LoadU8(at)
	if err != nil {
		return false, err
	}
	if f > 1 {
		return false, fmt.Errorf("%w: %d at %d", codec.ErrMalformedFlag, f, at)
	}
	return f == 1, nil
}

func (c call) entityList() ([]models.EntityID, error) {
	ptr, n, err := c.dec.Pair(abi.ReturnAreaPtr)
	if err != nil {
		return nil, err
	}
	return c.dec.EntityIDs(ptr, n)
}

// Spawn creates an entity holding set.
func (g *Guest) Spawn(set values.ComponentSet) models.EntityID {
	var id models.EntityID
	g.call("entity_spawn", func(c call) error {
		ptr, n, err := c.enc.ComponentSet(set)
		if err != nil {
			return err
		}
		if err = g.imp.EntitySpawn(ptr, n); err != nil {
			return err
		}
		id, err = c.dec.EntityIDAt(abi.ReturnAreaPtr)
		return err
	})
	return id
}

func (g *Guest) Despawn(id models.EntityID) bool {
	var ok uint32
	g.call("entity_despawn", func(call) (err error) {
		ok, err = g.imp.EntityDespawn(id.ID0, id.ID1)
		return err
	})
	return ok == 1
}

func (g *Guest) Exists(id models.EntityID) bool {
	var ok uint32
	g.call("entity_exists", func(call) (err error) {
		ok, err = g.imp.EntityExists(id.ID0, id.ID1)
		return err
	})
	return ok == 1
}

func (g *Guest) Get(id models.EntityID, idx models.ComponentIndex) (values.Value, bool) {
	var (
		v  values.Value
		ok bool
	)
	g.call("entity_get_component", func(c call) (err error) {
		if err = g.imp.EntityGetComponent(id.ID0, id.ID1, uint32(idx)); err != nil {
			return err
		}
		v, ok, err = c.dec.OptionValue(abi.ReturnAreaPtr)
		return err
	})
	return v, ok
}

func (g *Guest) Has(id models.EntityID, idx models.ComponentIndex) bool {
	var ok uint32
	g.call("entity_has_component", func(call) (err error) {
		ok, err = g.imp.EntityHasComponent(id.ID0, id.ID1, uint32(idx))
		return err
	})
	return ok == 1
}

// HasAll reports whether id carries every index.
func (g *Guest) HasAll(id models.EntityID, indices ...models.ComponentIndex) bool {
	var ok uint32
	g.call("entity_has_components", func(c call) error {
		ptr, n, err := c.enc.Indices(indices)
		if err != nil {
			return err
		}
		ok, err = g.imp.EntityHasComponents(id.ID0, id.ID1, ptr, n)
		return err
	})
	return ok == 1
}

func (g *Guest) Add(id models.EntityID, idx models.ComponentIndex, v values.Value) bool {
	return g.setOne("entity_add_component", g.imp.EntityAddComponent, id, idx, v)
}

// Set upserts idx on id. It is false when id does not exist.
func (g *Guest) Set(id models.EntityID, idx models.ComponentIndex, v values.Value) bool {
	return g.setOne("entity_set_component", g.imp.EntitySetComponent, id, idx, v)
}

func (g *Guest) setOne(op string, fn func(id0, id1 uint64, idx, ptr uint32) (uint32, error), id models.EntityID, idx models.ComponentIndex, v values.Value) bool {
	var ok uint32
	g.call(op, func(c call) error {
		ptr, err := c.enc.Value(v)
		if err != nil {
			return err
		}
		ok, err = fn(id.ID0, id.ID1, uint32(idx), ptr)
		return err
	})
	return ok == 1
}

func (g *Guest) AddMany(id models.EntityID, set values.ComponentSet) bool {
	return g.setMany("entity_add_components", g.imp.EntityAddComponents, id, set)
}

func (g *Guest) SetMany(id models.EntityID, set values.ComponentSet) bool {
	return g.setMany("entity_set_components", g.imp.EntitySetComponents, id, set)
}

func (g *Guest) setMany(op string, fn func(id0, id1 uint64, ptr, n uint32) (uint32, error), id models.EntityID, set values.ComponentSet) bool {
	var ok uint32
	g.call(op, func(c call) error {
		ptr, n, err := c.enc.ComponentSet(set)
		if err != nil {
			return err
		}
		ok, err = fn(id.ID0, id.ID1, ptr, n)
		return err
	})
	return ok == 1
}

func (g *Guest) Remove(id models.EntityID, idx models.ComponentIndex) bool {
	var ok uint32
	g.call("entity_remove_component", func(call) (err error) {
		ok, err = g.imp.EntityRemoveComponent(id.ID0, id.ID1, uint32(idx))
		return err
	})
	return ok == 1
}

func (g *Guest) RemoveMany(id models.EntityID, indices ...models.ComponentIndex) bool {
	var ok uint32
	g.call("entity_remove_components", func(c call) error {
		ptr, n, err := c.enc.Indices(indices)
		if err != nil {
			return err
		}
		ok, err = g.imp.EntityRemoveComponents(id.ID0, id.ID1, ptr, n)
		return err
	})
	return ok == 1
}

// Query lists the entities carrying idx.
func (g *Guest) Query(idx models.ComponentIndex) []models.EntityID {
	var ids []models.EntityID
	g.call("entity_query", func(c call) (err error) {
		if err = g.imp.EntityQuery(uint32(idx)); err != nil {
			return err
		}
		ids, err = c.entityList()
		return err
	})
	return ids
}

// Compile registers spec with the host and returns its handle.
func (g *Guest) Compile(spec query.Spec) query.Handle {
	var h uint64
	g.call("entity_query2", func(c call) error {
		var args [8]uint32
		for i, list := range [][]models.ComponentIndex{spec.Components, spec.Include, spec.Exclude, spec.Changed} {
			ptr, n, err := c.enc.Indices(list)
			if err != nil {
				return err
			}
			args[2*i], args[2*i+1] = ptr, n
		}
		var err error
		h, err = g.imp.EntityQuery2(args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7], uint32(spec.Event))
		return err
	})
	return query.Handle(h)
}

// Eval evaluates h. An unknown handle yields no rows.
func (g *Guest) Eval(h query.Handle) []query.Row {
	var rows []query.Row
	g.call("query_eval", func(c call) error {
		if err := g.imp.QueryEval(uint64(h)); err != nil {
			return err
		}
		ptr, n, err := c.dec.Pair(abi.ReturnAreaPtr)
		if err != nil {
			return err
		}
		records, err := c.dec.Rows(ptr, n)
		if err != nil {
			return err
		}
		rows = make([]query.Row, len(records))
		for i, r := range records {
			rows[i] = query.Row(r)
		}
		return nil
	})
	return rows
}

// Resources returns the entity holding world-global components.
func (g *Guest) Resources() models.EntityID {
	var id models.EntityID
	g.call("entity_resources", func(c call) (err error) {
		if err = g.imp.EntityResources(); err != nil {
			return err
		}
		id, err = c.dec.EntityIDAt(abi.ReturnAreaPtr)
		return err
	})
	return id
}

// InArea lists entities within radius of center, nearest first.
func (g *Guest) InArea(center values.Vec3, radius float32) []models.EntityID {
	var ids []models.EntityID
	g.call("entity_in_area", func(c call) (err error) {
		if err = g.imp.EntityInArea(center[0], center[1], center[2], radius); err != nil {
			return err
		}
		ids, err = c.entityList()
		return err
	})
	return ids
}

// ComponentIndex resolves a registered component name.
func (g *Guest) ComponentIndex(name string) (models.ComponentIndex, bool) {
	var (
		idx uint32
		ok  bool
	)
	g.call("component_get_index", func(c call) error {
		ptr, n, err := c.enc.String(name)
		if err != nil {
			return err
		}
		if err = g.imp.ComponentGetIndex(ptr, n); err != nil {
			return err
		}
		if ok, err = c.presence(abi.ReturnAreaPtr); err != nil || !ok {
			return err
		}
		idx, err = c.mem.LoadU32(abi.ReturnAreaPtr + 4)
		return err
	})
	return models.ComponentIndex(idx), ok
}

// SchemaFingerprint identifies the host's component schema.
func (g *Guest) SchemaFingerprint() uint64 {
	var fp uint64
	g.call("component_schema_fingerprint", func(call) (err error) {
		fp, err = g.imp.ComponentSchemaFingerprint()
		return err
	})
	return fp
}

// Subscribe asks for Exec to be called with every message named name.
func (g *Guest) Subscribe(name string) {
	g.call("event_subscribe", func(c call) error {
		ptr, n, err := c.enc.String(name)
		if err != nil {
			return err
		}
		return g.imp.EventSubscribe(ptr, n)
	})
}

// Send publishes a message to every subscriber.
func (g *Guest) Send(name string, data values.ComponentSet) {
	g.call("event_send", func(c call) error {
		namePtr, nameLen, err := c.enc.String(name)
		if err != nil {
			return err
		}
		dataPtr, dataLen, err := c.enc.ComponentSet(data)
		if err != nil {
			return err
		}
		return g.imp.EventSend(namePtr, nameLen, dataPtr, dataLen)
	})
}

// AssetURL resolves an asset path to a URL.
func (g *Guest) AssetURL(path string) (string, bool) {
	var (
		url string
		ok  bool
	)
	g.call("asset_url", func(c call) error {
		ptr, n, err := c.enc.String(path)
		if err != nil {
			return err
		}
		if err = g.imp.AssetURL(ptr, n); err != nil {
			return err
		}
		if ok, err = c.presence(abi.ReturnAreaPtr); err != nil || !ok {
			return err
		}
		sp, sn, err := c.dec.Pair(abi.ReturnAreaPtr + 4)
		if err != nil {
			return err
		}
		url, err = c.dec.String(sp, sn)
		return err
	})
	return url, ok
}

// Raycast returns the entities struck along the ray, nearest first.
func (g *Guest) Raycast(origin, direction values.Vec3) []physics.Hit {
	var hits []physics.Hit
	g.call("physics_raycast", func(c call) error {
		err := g.imp.PhysicsRaycast(origin[0], origin[1], origin[2], direction[0], direction[1], direction[2])
		if err != nil {
			return err
		}
		ptr, n, err := c.dec.Pair(abi.ReturnAreaPtr)
		if err != nil {
			return err
		}
		records, err := c.dec.Hits(ptr, n)
		if err != nil {
			return err
		}
		hits = make([]physics.Hit, len(records))
		for i, h := range records {
			hits[i] = physics.Hit(h)
		}
		return nil
	})
	return hits
}
