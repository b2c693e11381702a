package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntityID(t *testing.T) {
	t.Run("Fresh ids are distinct and non-null", func(t *testing.T) {
		seen := make(map[EntityID]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			id := NewEntityID()
			require.False(t, id.IsNull())
			_, dup := seen[id]
			require.False(t, dup)
			seen[id] = struct{}{}
		}
	})

	t.Run("Text form parses back", func(t *testing.T) {
		id := NewEntityID()
		parsed, err := ParseEntityID(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)

		_, err = ParseEntityID("not-an-id")
		require.Error(t, err)
	})

	t.Run("Words round trip", func(t *testing.T) {
		id := EntityID{ID0: 0xdeadbeef, ID1: 42}
		a, b := id.Words()
		require.Equal(t, id, EntityID{ID0: a, ID1: b})
		require.Equal(t, id, EntityIDFromUUID(id.UUID()))
	})

	t.Run("JSON uses the text form", func(t *testing.T) {
		id := NewEntityID()
		data, err := json.Marshal(map[string]EntityID{"id": id})
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"`+id.String()+`"}`, string(data))

		var back map[string]EntityID
		require.NoError(t, json.Unmarshal(data, &back))
		require.Equal(t, id, back["id"])
		require.Error(t, json.Unmarshal([]byte(`{"id":"nope"}`), &back))
	})
}
