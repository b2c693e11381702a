package guest

// Imports is the raw host surface a guest links against. Every argument is an
// integer, a float or a (ptr, len) pair into the guest's memory. Composite
// results are left in the return area and must be read before the next call.
type Imports interface {
	EntitySpawn(ptr, n uint32) error
	EntityDespawn(id0, id1 uint64) (uint32, error)
	EntityExists(id0, id1 uint64) (uint32, error)

	EntityGetComponent(id0, id1 uint64, idx uint32) error
	EntityHasComponent(id0, id1 uint64, idx uint32) (uint32, error)
	EntityHasComponents(id0, id1 uint64, ptr, n uint32) (uint32, error)
	EntityAddComponent(id0, id1 uint64, idx, valuePtr uint32) (uint32, error)
	EntityAddComponents(id0, id1 uint64, ptr, n uint32) (uint32, error)
	EntitySetComponent(id0, id1 uint64, idx, valuePtr uint32) (uint32, error)
	EntitySetComponents(id0, id1 uint64, ptr, n uint32) (uint32, error)
	EntityRemoveComponent(id0, id1 uint64, idx uint32) (uint32, error)
	EntityRemoveComponents(id0, id1 uint64, ptr, n uint32) (uint32, error)

	EntityQuery(idx uint32) error
	EntityQuery2(compPtr, compLen, inclPtr, inclLen, exclPtr, exclLen, chPtr, chLen, event uint32) (uint64, error)
	QueryEval(h uint64) error
	EntityResources() error
	EntityInArea(x, y, z, radius float32) error

	ComponentGetIndex(ptr, n uint32) error
	ComponentSchemaFingerprint() (uint64, error)

	EventSubscribe(ptr, n uint32) error
	EventSend(namePtr, nameLen, dataPtr, dataLen uint32) error

	AssetURL(ptr, n uint32) error
	PhysicsRaycast(ox, oy, oz, dx, dy, dz float32) error
}
