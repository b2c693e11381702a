package host

import (
	"fmt"

	"github.com/zeusync/worldcore/internal/core/abi"
	"github.com/zeusync/worldcore/internal/core/codec"
	"github.com/zeusync/worldcore/internal/core/models"
	"github.com/zeusync/worldcore/internal/core/observability/log"
	"github.com/zeusync/worldcore/internal/core/query"
	"github.com/zeusync/worldcore/internal/core/values"
)

// Bindings are the host imports of one guest instance.
//
// Arguments are read from the guest's memory and stay owned by the guest.
// Composite results go to the return area; out-of-line result buffers are
// allocated in the guest's heap and owned by the guest afterwards.
//
// The first error latches the instance as faulted: it is logged once and
// every later call fails with ErrInstanceFaulted without touching the world.
type Bindings struct {
	world  *World
	inst   *abi.Instance
	module string
	inbox  *Inbox
	enc    *codec.Encoder
	dec    *codec.Decoder
	log    log.Log

	fault error
	calls uint64
}

func NewBindings(w *World, inst *abi.Instance, module string, inbox *Inbox) *Bindings {
	if inbox == nil {
		inbox = NewInbox(w.Bus, module, 0, w.log)
	}
	return &Bindings{
		world:  w,
		inst:   inst,
		module: module,
		inbox:  inbox,
		enc:    codec.NewEncoder(inst.Memory(), inst),
		dec:    codec.NewDecoder(inst.Memory()),
		log:    w.log.With(log.Module(module)),
	}
}

func (b *Bindings) Module() string {
	return b.module
}

func (b *Bindings) Inbox() *Inbox {
	return b.inbox
}

// Fault is the error that faulted the instance, or nil.
func (b *Bindings) Fault() error {
	return b.fault
}

// Calls counts the imports invoked so far.
func (b *Bindings) Calls() uint64 {
	return b.calls
}

// Close releases the instance's query handles and subscriptions.
func (b *Bindings) Close() error {
	dropped := b.world.Queries.DropAll(b.module)
	b.log.Debug("bindings closed", log.Int("queries", dropped))
	return b.inbox.Close()
}

func (b *Bindings) enter() error {
	if b.fault != nil {
		return fmt.Errorf("%w: %w", ErrInstanceFaulted, b.fault)
	}
	b.calls++
	return nil
}

func (b *Bindings) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s: %w", op, err)
	if b.fault == nil {
		b.fault = err
		b.log.Error("guest instance faulted",
			log.Op(op),
			log.Bool("violation", abi.IsViolation(err)),
			log.Error(err),
		)
	}
	return err
}

func flag(ok bool) uint32 {
	if ok {
		return 1
	}
	return 0
}

func entity(id0, id1 uint64) models.EntityID {
	return models.EntityID{ID0: id0, ID1: id1}
}

// writeList stores a (ptr, len) result at the start of the return area.
func (b *Bindings) writeList(ptr, n uint32) error {
	return b.enc.PutPair(b.inst.ReturnArea(), ptr, n)
}

// EntitySpawn creates an entity from the component set at (ptr, n) and writes
// its id to the return area.
func (b *Bindings) EntitySpawn(ptr, n uint32) error {
	const op = "entity_spawn"
	if err := b.enter(); err != nil {
		return err
	}
	set, err := b.dec.ComponentSet(ptr, n)
	if err != nil {
		return b.fail(op, err)
	}
	if err = b.world.CheckSet(set); err != nil {
		return b.fail(op, err)
	}
	id := b.world.Store.Spawn(set)
	return b.fail(op, b.enc.PutEntityID(b.inst.ReturnArea(), id))
}

func (b *Bindings) EntityDespawn(id0, id1 uint64) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	return flag(b.world.Store.Despawn(entity(id0, id1))), nil
}

func (b *Bindings) EntityExists(id0, id1 uint64) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	return flag(b.world.Store.Exists(entity(id0, id1))), nil
}

// EntityGetComponent writes an optional value record to the return area.
func (b *Bindings) EntityGetComponent(id0, id1 uint64, idx uint32) error {
	const op = "entity_get_component"
	if err := b.enter(); err != nil {
		return err
	}
	if err := b.world.CheckIndex(models.ComponentIndex(idx)); err != nil {
		return b.fail(op, err)
	}
	v, _ := b.world.Store.Get(entity(id0, id1), models.ComponentIndex(idx))
	return b.fail(op, b.enc.PutOptionValue(b.inst.ReturnArea(), v))
}

func (b *Bindings) EntityHasComponent(id0, id1 uint64, idx uint32) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	if err := b.world.CheckIndex(models.ComponentIndex(idx)); err != nil {
		return 0, b.fail("entity_has_component", err)
	}
	return flag(b.world.Store.Has(entity(id0, id1), models.ComponentIndex(idx))), nil
}

func (b *Bindings) EntityHasComponents(id0, id1 uint64, ptr, n uint32) (uint32, error) {
	const op = "entity_has_components"
	if err := b.enter(); err != nil {
		return 0, err
	}
	indices, err := b.dec.Indices(ptr, n)
	if err != nil {
		return 0, b.fail(op, err)
	}
	if err = b.world.CheckIndices(indices); err != nil {
		return 0, b.fail(op, err)
	}
	return flag(b.world.Store.HasAll(entity(id0, id1), indices)), nil
}

func (b *Bindings) EntityAddComponent(id0, id1 uint64, idx, valuePtr uint32) (uint32, error) {
	return b.setOne("entity_add_component", id0, id1, idx, valuePtr)
}

func (b *Bindings) EntitySetComponent(id0, id1 uint64, idx, valuePtr uint32) (uint32, error) {
	return b.setOne("entity_set_component", id0, id1, idx, valuePtr)
}

func (b *Bindings) setOne(op string, id0, id1 uint64, idx, valuePtr uint32) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	v, err := b.dec.Value(valuePtr)
	if err != nil {
		return 0, b.fail(op, err)
	}
	if err = b.world.CheckValue(models.ComponentIndex(idx), v); err != nil {
		return 0, b.fail(op, err)
	}
	return flag(b.world.Store.Set(entity(id0, id1), models.ComponentIndex(idx), v)), nil
}

func (b *Bindings) EntityAddComponents(id0, id1 uint64, ptr, n uint32) (uint32, error) {
	return b.setMany("entity_add_components", id0, id1, ptr, n)
}

func (b *Bindings) EntitySetComponents(id0, id1 uint64, ptr, n uint32) (uint32, error) {
	return b.setMany("entity_set_components", id0, id1, ptr, n)
}

func (b *Bindings) setMany(op string, id0, id1 uint64, ptr, n uint32) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	set, err := b.dec.ComponentSet(ptr, n)
	if err != nil {
		return 0, b.fail(op, err)
	}
	if err = b.world.CheckSet(set); err != nil {
		return 0, b.fail(op, err)
	}
	return flag(b.world.Store.SetMany(entity(id0, id1), set)), nil
}

func (b *Bindings) EntityRemoveComponent(id0, id1 uint64, idx uint32) (uint32, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	if err := b.world.CheckIndex(models.ComponentIndex(idx)); err != nil {
		return 0, b.fail("entity_remove_component", err)
	}
	return flag(b.world.Store.Remove(entity(id0, id1), models.ComponentIndex(idx))), nil
}

func (b *Bindings) EntityRemoveComponents(id0, id1 uint64, ptr, n uint32) (uint32, error) {
	const op = "entity_remove_components"
	if err := b.enter(); err != nil {
		return 0, err
	}
	indices, err := b.dec.Indices(ptr, n)
	if err != nil {
		return 0, b.fail(op, err)
	}
	if err = b.world.CheckIndices(indices); err != nil {
		return 0, b.fail(op, err)
	}
	return flag(b.world.Store.RemoveMany(entity(id0, id1), indices)), nil
}

// EntityQuery writes the (ptr, len) list of entities carrying idx.
func (b *Bindings) EntityQuery(idx uint32) error {
	const op = "entity_query"
	if err := b.enter(); err != nil {
		return err
	}
	if err := b.world.CheckIndex(models.ComponentIndex(idx)); err != nil {
		return b.fail(op, err)
	}
	ptr, n, err := b.enc.EntityIDs(b.world.Store.Query(models.ComponentIndex(idx)))
	if err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, b.writeList(ptr, n))
}

// EntityQuery2 compiles a query from four index lists and an event tag.
func (b *Bindings) EntityQuery2(compPtr, compLen, inclPtr, inclLen, exclPtr, exclLen, chPtr, chLen, event uint32) (uint64, error) {
	const op = "entity_query2"
	if err := b.enter(); err != nil {
		return 0, err
	}
	spec := query.Spec{Event: query.Event(event)}
	if event > uint32(query.Despawn) {
		return 0, b.fail(op, fmt.Errorf("%w: %d", ErrInvalidEvent, event))
	}

	var err error
	for _, list := range []struct {
		dst    *[]models.ComponentIndex
		ptr, n uint32
	}{
		{&spec.Components, compPtr, compLen},
		{&spec.Include, inclPtr, inclLen},
		{&spec.Exclude, exclPtr, exclLen},
		{&spec.Changed, chPtr, chLen},
	} {
		if *list.dst, err = b.dec.Indices(list.ptr, list.n); err != nil {
			return 0, b.fail(op, err)
		}
	}
	if err = b.world.CheckIndices(spec.Indices()); err != nil {
		return 0, b.fail(op, err)
	}
	return uint64(b.world.Queries.CompileFor(b.module, spec)), nil
}

// QueryEval writes the (ptr, len) rows of evaluating h. A handle this
// instance does not own yields no rows.
func (b *Bindings) QueryEval(h uint64) error {
	const op = "query_eval"
	if err := b.enter(); err != nil {
		return err
	}
	rows, ok := b.world.Queries.EvaluateFor(b.module, query.Handle(h))
	if !ok {
		b.log.Debug("unknown query handle", log.Handle(h))
	}
	records := make([]codec.Row, len(rows))
	for i, r := range rows {
		records[i] = codec.Row(r)
	}
	ptr, n, err := b.enc.Rows(records)
	if err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, b.writeList(ptr, n))
}

func (b *Bindings) EntityResources() error {
	if err := b.enter(); err != nil {
		return err
	}
	return b.fail("entity_resources", b.enc.PutEntityID(b.inst.ReturnArea(), b.world.Store.Resources()))
}

// EntityInArea writes the (ptr, len) list of entities within radius of the
// point, nearest first.
func (b *Bindings) EntityInArea(x, y, z, radius float32) error {
	const op = "entity_in_area"
	if err := b.enter(); err != nil {
		return err
	}
	ptr, n, err := b.enc.EntityIDs(b.world.Store.InArea(values.Vec3{x, y, z}, radius))
	if err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, b.writeList(ptr, n))
}

// ComponentGetIndex writes a presence byte and, when present, the u32 index
// at offset 4 of the return area.
func (b *Bindings) ComponentGetIndex(ptr, n uint32) error {
	const op = "component_get_index"
	if err := b.enter(); err != nil {
		return err
	}
	name, err := b.dec.String(ptr, n)
	if err != nil {
		return b.fail(op, err)
	}
	area := b.inst.ReturnArea()
	idx, ok := b.world.Registry.Lookup(name)
	if !ok {
		return nil
	}
	mem := b.inst.Memory()
	if err = mem.StoreU8(area, 1); err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, mem.StoreU32(area+4, uint32(idx)))
}

func (b *Bindings) ComponentSchemaFingerprint() (uint64, error) {
	if err := b.enter(); err != nil {
		return 0, err
	}
	return b.world.Registry.Fingerprint(), nil
}

func (b *Bindings) EventSubscribe(ptr, n uint32) error {
	const op = "event_subscribe"
	if err := b.enter(); err != nil {
		return err
	}
	name, err := b.dec.String(ptr, n)
	if err != nil {
		return b.fail(op, err)
	}
	if name == "" {
		return b.fail(op, ErrInvalidName)
	}
	return b.fail(op, b.inbox.Subscribe(name))
}

// EventSend publishes a message; subscribers receive it on the next tick.
func (b *Bindings) EventSend(namePtr, nameLen, dataPtr, dataLen uint32) error {
	const op = "event_send"
	if err := b.enter(); err != nil {
		return err
	}
	name, err := b.dec.String(namePtr, nameLen)
	if err != nil {
		return b.fail(op, err)
	}
	if name == "" {
		return b.fail(op, ErrInvalidName)
	}
	data, err := b.dec.ComponentSet(dataPtr, dataLen)
	if err != nil {
		return b.fail(op, err)
	}
	if err = b.world.CheckSet(data); err != nil {
		return b.fail(op, err)
	}
	if err = b.inbox.Send(name, data); err != nil {
		b.log.Warn("event delivery failed", log.String("event", name), log.Error(err))
	}
	return nil
}

// AssetURL writes a presence byte and, when present, the (ptr, len) of the
// URL string at offset 4 of the return area.
func (b *Bindings) AssetURL(ptr, n uint32) error {
	const op = "asset_url"
	if err := b.enter(); err != nil {
		return err
	}
	p, err := b.dec.String(ptr, n)
	if err != nil {
		return b.fail(op, err)
	}
	area := b.inst.ReturnArea()
	if b.world.Assets == nil {
		return nil
	}
	url, ok := b.world.Assets.URL(p)
	if !ok {
		return nil
	}
	if err = b.inst.Memory().StoreU8(area, 1); err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, b.enc.PutString(area+4, url))
}

// PhysicsRaycast writes the (ptr, len) list of hits along the ray.
func (b *Bindings) PhysicsRaycast(ox, oy, oz, dx, dy, dz float32) error {
	const op = "physics_raycast"
	if err := b.enter(); err != nil {
		return err
	}
	area := b.inst.ReturnArea()
	if b.world.Physics == nil {
		return nil
	}
	hits := b.world.Physics.Raycast(values.Vec3{ox, oy, oz}, values.Vec3{dx, dy, dz})
	records := make([]codec.Hit, len(hits))
	for i, h := range hits {
		records[i] = codec.Hit(h)
	}
	ptr, n, err := b.enc.Hits(records)
	if err != nil {
		return b.fail(op, err)
	}
	return b.fail(op, b.enc.PutPair(area, ptr, n))
}
