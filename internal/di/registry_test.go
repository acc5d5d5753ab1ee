package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdi/loom/errors"
)

func nopFactory(context.Context, []any) (any, error) {
	return struct{}{}, nil
}

func TestStoreRegisterAndLookup(t *testing.T) {
	s := NewStore("test", nil)

	err := s.Register(Descriptor{TypeID: "db", Scope: Singleton, Factory: nopFactory})
	require.NoError(t, err)

	d, ok := s.Lookup("db")
	require.True(t, ok)
	assert.Equal(t, "db", d.TypeID)
	assert.Equal(t, Singleton, d.Scope)
	assert.False(t, d.RegisteredAt().IsZero())

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestStoreRejectsDuplicates(t *testing.T) {
	s := NewStore("test", nil)

	require.NoError(t, s.Register(Descriptor{TypeID: "db", Factory: nopFactory}))

	err := s.Register(Descriptor{TypeID: "db", Factory: nopFactory})
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateRegistration(err))
}

func TestStoreRejectsInvalidDescriptors(t *testing.T) {
	s := NewStore("test", nil)

	err := s.Register(Descriptor{TypeID: "", Factory: nopFactory})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDefinitionSentinel))

	err = s.Register(Descriptor{TypeID: "db"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNilFactory))
}

func TestStoreTypeIDsPreserveRegistrationOrder(t *testing.T) {
	s := NewStore("test", nil)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Register(Descriptor{TypeID: id, Factory: nopFactory}))
	}
	assert.Equal(t, []string{"c", "a", "b"}, s.TypeIDs())
	assert.Equal(t, 3, s.Count())
}

func TestStoreByTag(t *testing.T) {
	s := NewStore("test", nil)

	require.NoError(t, s.Register(Descriptor{
		TypeID: "pg", Factory: nopFactory,
		Tags: map[string]string{"kind": "database"},
	}))
	require.NoError(t, s.Register(Descriptor{
		TypeID: "redis", Factory: nopFactory,
		Tags: map[string]string{"kind": "cache"},
	}))
	require.NoError(t, s.Register(Descriptor{
		TypeID: "mysql", Factory: nopFactory,
		Tags: map[string]string{"kind": "database"},
	}))

	matches := s.ByTag("kind", "database")
	require.Len(t, matches, 2)
	assert.Equal(t, "pg", matches[0].TypeID)
	assert.Equal(t, "mysql", matches[1].TypeID)

	assert.Empty(t, s.ByTag("kind", "queue"))
}

func TestStoreExported(t *testing.T) {
	s := NewStore("test", nil)

	require.NoError(t, s.Register(Descriptor{TypeID: "db", Factory: nopFactory, Exportable: true}))
	require.NoError(t, s.Register(Descriptor{TypeID: "internal", Factory: nopFactory}))
	require.NoError(t, s.Register(Descriptor{TypeID: "cache", Factory: nopFactory, Exportable: true}))

	assert.Equal(t, []string{"db", "cache"}, s.Exported())
}

func TestStoreUnregister(t *testing.T) {
	s := NewStore("test", nil)

	require.NoError(t, s.Register(Descriptor{TypeID: "db", Factory: nopFactory}))
	assert.True(t, s.Unregister("db"))
	assert.False(t, s.Unregister("db"))

	_, ok := s.Lookup("db")
	assert.False(t, ok)
	assert.Empty(t, s.TypeIDs())
}

func TestStoreClear(t *testing.T) {
	s := NewStore("test", nil)

	require.NoError(t, s.Register(Descriptor{TypeID: "a", Factory: nopFactory}))
	require.NoError(t, s.Register(Descriptor{TypeID: "b", Factory: nopFactory}))

	s.Clear()
	assert.Zero(t, s.Count())
	assert.Empty(t, s.TypeIDs())
}
