package models

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// EntityID is the opaque 128-bit handle of an entity, carried as two 64-bit words
// so it can cross the guest boundary as two integer parameters.
type EntityID struct {
	ID0 uint64
	ID1 uint64
}

// ComponentIndex is the dense, registration-order index of a component type.
type ComponentIndex uint32

// NullEntity is never issued by a store.
var NullEntity = EntityID{}

// NewEntityID returns a fresh random id. The null id is never returned.
func NewEntityID() EntityID {
	for {
		id := EntityIDFromUUID(uuid.New())
		if !id.IsNull() {
			return id
		}
	}
}

// EntityIDFromUUID splits a UUID into the two words of an EntityID.
func EntityIDFromUUID(u uuid.UUID) EntityID {
	return EntityID{
		ID0: binary.BigEndian.Uint64(u[0:8]),
		ID1: binary.BigEndian.Uint64(u[8:16]),
	}
}

// ParseEntityID parses the canonical UUID text form produced by String.
func ParseEntityID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NullEntity, fmt.Errorf("parse entity id %q: %w", s, err)
	}
	return EntityIDFromUUID(u), nil
}

// UUID joins the two words back into a UUID.
func (id EntityID) UUID() uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint64(u[0:8], id.ID0)
	binary.BigEndian.PutUint64(u[8:16], id.ID1)
	return u
}

func (id EntityID) IsNull() bool {
	return id.ID0 == 0 && id.ID1 == 0
}

func (id EntityID) String() string {
	return id.UUID().String()
}

// Words returns the id as the pair passed across the boundary.
func (id EntityID) Words() (uint64, uint64) {
	return id.ID0, id.ID1
}

// MarshalText encodes the id in its UUID text form.
func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
