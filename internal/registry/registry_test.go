package registry

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prefixer is a stateful transformer used to exercise the instance shape.
type prefixer struct {
	prefix string
}

func (p *prefixer) Sanitize(value interface{}, _ ...string) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return p.prefix + s
}

// fakeContainer counts constructions per identifier.
type fakeContainer struct {
	mu        sync.Mutex
	instances map[string]func() interface{}
	makeCalls map[string]int
	err       error
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{
		instances: make(map[string]func() interface{}),
		makeCalls: make(map[string]int),
	}
}

func (c *fakeContainer) Make(identifier string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.makeCalls[identifier]++
	if c.err != nil {
		return nil, c.err
	}

	factory, ok := c.instances[identifier]
	if !ok {
		return nil, errors.New("unknown identifier")
	}
	return factory(), nil
}

func TestResolveFunc(t *testing.T) {
	r := New()
	r.Register("upper", Func(func(value interface{}, _ ...string) interface{} {
		return strings.ToUpper(value.(string))
	}))

	handle, err := r.Resolve("upper")
	require.NoError(t, err)
	require.NotNil(t, handle)

	assert.Equal(t, "BOB", handle.Invoke("bob"))
}

func TestResolvePlainFuncShape(t *testing.T) {
	r := New()
	r.Register("upper", func(value interface{}, _ ...string) interface{} {
		return strings.ToUpper(value.(string))
	})

	handle, err := r.Resolve("upper")
	require.NoError(t, err)
	require.NotNil(t, handle)

	assert.Equal(t, "BOB", handle.Invoke("bob"))
}

func TestResolveSanitizerInstance(t *testing.T) {
	r := New()
	r.Register("prefix", &prefixer{prefix: ">"})

	handle, err := r.Resolve("prefix")
	require.NoError(t, err)
	require.NotNil(t, handle)

	assert.Equal(t, ">bob", handle.Invoke("bob"))
}

func TestResolveUnknownName(t *testing.T) {
	r := New()

	handle, err := r.Resolve("missing")

	require.NoError(t, err)
	assert.Nil(t, handle)
}

func TestResolveNonInvocableEntry(t *testing.T) {
	r := New()
	r.Register("broken", 42)

	handle, err := r.Resolve("broken")

	require.NoError(t, err)
	assert.Nil(t, handle)
}

func TestRegisterOverwrites(t *testing.T) {
	r := New()
	r.Register("t", Func(func(value interface{}, _ ...string) interface{} {
		return "first"
	}))

	handle, err := r.Resolve("t")
	require.NoError(t, err)
	assert.Equal(t, "first", handle.Invoke("x"))

	r.Register("t", Func(func(value interface{}, _ ...string) interface{} {
		return "second"
	}))

	handle, err = r.Resolve("t")
	require.NoError(t, err)
	assert.Equal(t, "second", handle.Invoke("x"))
}

func TestResolveClassRef(t *testing.T) {
	t.Run("default method", func(t *testing.T) {
		c := newFakeContainer()
		c.instances["Prefixer"] = func() interface{} { return &prefixer{prefix: "#"} }

		r := New(WithContainer(c))
		r.Register("prefix", "Prefixer")

		handle, err := r.Resolve("prefix")
		require.NoError(t, err)
		require.NotNil(t, handle)
		assert.Equal(t, "#bob", handle.Invoke("bob"))
	})

	t.Run("explicit method selector", func(t *testing.T) {
		c := newFakeContainer()
		c.instances["Trimmer"] = func() interface{} { return trimmer{} }

		r := New(WithContainer(c))
		r.Register("clean", "Trimmer@Clean")

		handle, err := r.Resolve("clean")
		require.NoError(t, err)
		require.NotNil(t, handle)
		assert.Equal(t, "bob", handle.Invoke("  bob  "))
	})

	t.Run("construction happens at most once", func(t *testing.T) {
		c := newFakeContainer()
		c.instances["Prefixer"] = func() interface{} { return &prefixer{prefix: "#"} }

		r := New(WithContainer(c))
		r.Register("prefix", "Prefixer")

		first, err := r.Resolve("prefix")
		require.NoError(t, err)
		second, err := r.Resolve("prefix")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, c.makeCalls["Prefixer"])
	})

	t.Run("container error propagates and is not memoized", func(t *testing.T) {
		c := newFakeContainer()
		c.err = errors.New("boom")

		r := New(WithContainer(c))
		r.Register("prefix", "Prefixer")

		_, err := r.Resolve("prefix")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")

		// A later, healthy container call succeeds.
		c.mu.Lock()
		c.err = nil
		c.instances["Prefixer"] = func() interface{} { return &prefixer{prefix: "#"} }
		c.mu.Unlock()

		handle, err := r.Resolve("prefix")
		require.NoError(t, err)
		require.NotNil(t, handle)
	})

	t.Run("nil instance yields no handle", func(t *testing.T) {
		c := newFakeContainer()
		c.instances["Empty"] = func() interface{} { return nil }

		r := New(WithContainer(c))
		r.Register("empty", "Empty")

		var handle *Handle
		var err error
		require.NotPanics(t, func() {
			handle, err = r.Resolve("empty")
		})
		require.NoError(t, err)
		assert.Nil(t, handle)
	})

	t.Run("missing method yields no handle", func(t *testing.T) {
		c := newFakeContainer()
		c.instances["Trimmer"] = func() interface{} { return trimmer{} }

		r := New(WithContainer(c))
		r.Register("clean", "Trimmer@Nope")

		handle, err := r.Resolve("clean")
		require.NoError(t, err)
		assert.Nil(t, handle)
	})

	t.Run("no container configured", func(t *testing.T) {
		r := New()
		r.Register("prefix", "Prefixer")

		handle, err := r.Resolve("prefix")
		require.NoError(t, err)
		assert.Nil(t, handle)
	})
}

// trimmer exposes a non-conventional method name for selector tests.
type trimmer struct{}

func (trimmer) Clean(value string) string {
	return strings.TrimSpace(value)
}

func TestConcurrentResolveConstructsOnce(t *testing.T) {
	c := newFakeContainer()
	c.instances["Prefixer"] = func() interface{} { return &prefixer{prefix: "#"} }

	r := New(WithContainer(c))
	r.Register("prefix", "Prefixer")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve("prefix")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.makeCalls["Prefixer"])
}

func TestNames(t *testing.T) {
	r := New()
	r.Register("b", Func(func(v interface{}, _ ...string) interface{} { return v }))
	r.Register("a", Func(func(v interface{}, _ ...string) interface{} { return v }))

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestSplitClassRef(t *testing.T) {
	tests := []struct {
		name       string
		ref        string
		identifier string
		method     string
	}{
		{
			name:       "identifier only",
			ref:        "Trimmer",
			identifier: "Trimmer",
			method:     DefaultMethod,
		},
		{
			name:       "identifier with method",
			ref:        "Trimmer@Clean",
			identifier: "Trimmer",
			method:     "Clean",
		},
		{
			name:       "empty method falls back to default",
			ref:        "Trimmer@",
			identifier: "Trimmer",
			method:     DefaultMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identifier, method := splitClassRef(tt.ref)
			assert.Equal(t, tt.identifier, identifier)
			assert.Equal(t, tt.method, method)
		})
	}
}
