package loom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdi/loom/errors"
)

func TestGenericResolve(t *testing.T) {
	c := NewContext("test")
	require.NoError(t, c.RegisterComponent(MustProvide(NewDatabase, Exported()).descriptor()))
	require.NoError(t, c.RegisterComponent(MustProvide(NewService).descriptor()))
	require.NoError(t, c.Start(context.Background()))

	db, err := Resolve[*Database](context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost", db.DSN)

	svc, err := Resolve[*Service](context.Background(), c)
	require.NoError(t, err)
	assert.Same(t, db, svc.DB)

	_, err = Resolve[*lifecycleLog](context.Background(), c)
	require.Error(t, err)
	assert.True(t, errors.IsComponentResolution(err))
}

func TestResolveNamed(t *testing.T) {
	c := NewContext("test")
	require.NoError(t, c.RegisterComponent(MustProvide(NewDatabase, WithTypeID("primary")).descriptor()))
	require.NoError(t, c.Start(context.Background()))

	db, err := ResolveNamed[*Database](context.Background(), c, "primary")
	require.NoError(t, err)
	assert.NotNil(t, db)

	// Resolving under the wrong type fails instead of panicking.
	_, err = ResolveNamed[*Service](context.Background(), c, "primary")
	require.Error(t, err)
	assert.True(t, errors.IsComponentResolution(err))
}

func TestResolveScopedGeneric(t *testing.T) {
	c := NewContext("test")
	require.NoError(t, c.RegisterComponent(MustProvide(NewDatabase, WithScope(ScopeScoped)).descriptor()))
	require.NoError(t, c.Start(context.Background()))

	first, err := ResolveScoped[*Database](context.Background(), c, "req-1")
	require.NoError(t, err)
	again, err := ResolveScoped[*Database](context.Background(), c, "req-1")
	require.NoError(t, err)
	other, err := ResolveScoped[*Database](context.Background(), c, "req-2")
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
}

func TestGlobalContext(t *testing.T) {
	ResetGlobal()
	t.Cleanup(ResetGlobal)

	g := Global()
	assert.Same(t, g, Global())
	assert.Equal(t, "global", g.Name())

	fresh := InitGlobal()
	assert.NotSame(t, g, fresh)
	assert.Same(t, fresh, Global())

	ResetGlobal()
	assert.NotSame(t, fresh, Global())
}
