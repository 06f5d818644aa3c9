package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	c := New()
	c.Bind("Widget", func() (interface{}, error) {
		return "widget-instance", nil
	})

	instance, err := c.Make("Widget")

	require.NoError(t, err)
	assert.Equal(t, "widget-instance", instance)
}

func TestMakeUnbound(t *testing.T) {
	c := New()

	_, err := c.Make("Nope")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestMakeFactoryError(t *testing.T) {
	c := New()
	c.Bind("Broken", func() (interface{}, error) {
		return nil, errors.New("boom")
	})

	_, err := c.Make("Broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMakeRunsFactoryEachCall(t *testing.T) {
	calls := 0
	c := New()
	c.Bind("Counter", func() (interface{}, error) {
		calls++
		return calls, nil
	})

	first, err := c.Make("Counter")
	require.NoError(t, err)
	second, err := c.Make("Counter")
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestBindValue(t *testing.T) {
	instance := &struct{ name string }{name: "shared"}

	c := New()
	c.BindValue("Shared", instance)

	first, err := c.Make("Shared")
	require.NoError(t, err)
	second, err := c.Make("Shared")
	require.NoError(t, err)

	assert.Same(t, instance, first)
	assert.Same(t, instance, second)
}

func TestBindOverwrites(t *testing.T) {
	c := New()
	c.BindValue("X", "first")
	c.BindValue("X", "second")

	instance, err := c.Make("X")

	require.NoError(t, err)
	assert.Equal(t, "second", instance)
}
