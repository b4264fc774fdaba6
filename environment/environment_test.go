package environment

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n      int64
	closed int32
}

func (c *counter) Close() {
	atomic.AddInt32(&c.closed, 1)
}

func TestCreateVariableSharesInstance(t *testing.T) {
	env := New()
	ctorCalls := 0
	ctor := func() *counter {
		ctorCalls++
		return &counter{}
	}

	a := CreateVariable(env, "shared", ctor)
	b := CreateVariable(env, "shared", ctor)
	require.Same(t, a.Get(), b.Get())
	assert.Equal(t, 1, ctorCalls)
	assert.True(t, env.IsConstructed("shared"))
	assert.False(t, env.IsConstructed("other"))
	assert.Equal(t, "shared", a.Name())
}

func TestResetDestroysOnLastReference(t *testing.T) {
	env := New()
	a := CreateVariable(env, "v", func() *counter { return &counter{} })
	b := CreateVariable(env, "v", func() *counter { return &counter{} })
	inst := a.Get()

	a.Reset()
	a.Reset()
	assert.False(t, a.IsConstructed())
	assert.True(t, b.IsConstructed())
	assert.True(t, env.IsConstructed("v"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&inst.closed))

	b.Reset()
	assert.False(t, env.IsConstructed("v"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&inst.closed))
	assert.Equal(t, 0, env.Len())

	c := CreateVariable(env, "v", func() *counter { return &counter{} })
	defer c.Reset()
	assert.NotSame(t, inst, c.Get())
}

func TestFindVariable(t *testing.T) {
	env := New()
	_, ok := FindVariable[*counter](env, "missing")
	assert.False(t, ok)

	a := CreateVariable(env, "found", func() *counter { return &counter{n: 7} })
	b, ok := FindVariable[*counter](env, "found")
	require.True(t, ok)
	assert.Equal(t, int64(7), b.Get().n)

	a.Reset()
	assert.True(t, env.IsConstructed("found"))
	b.Reset()
	assert.False(t, env.IsConstructed("found"))
}

func TestTypeMismatch(t *testing.T) {
	env := New()
	v := CreateVariable(env, "typed", func() int { return 1 })
	defer v.Reset()
	assert.PanicsWithError(t, `environment: variable type mismatch: "typed" holds int`, func() {
		CreateVariable(env, "typed", func() string { return "x" })
	})
}

func TestConcurrentCreate(t *testing.T) {
	env := New()
	var ctorCalls int32
	vars := make([]*Variable[*counter], 32)
	wg := sync.WaitGroup{}
	for i := range vars {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vars[i] = CreateVariable(env, "concurrent", func() *counter {
				atomic.AddInt32(&ctorCalls, 1)
				return &counter{}
			})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ctorCalls)
	for _, v := range vars {
		assert.Same(t, vars[0].Get(), v.Get())
	}
	for _, v := range vars {
		v.Reset()
	}
	assert.False(t, env.IsConstructed("concurrent"))
}

func TestHashIsStable(t *testing.T) {
	assert.Equal(t, Hash("memreg.Manager"), Hash("memreg.Manager"))
	assert.NotEqual(t, Hash("a"), Hash("b"))
}

func TestDefaultEnvironment(t *testing.T) {
	require.False(t, IsReady())
	require.Nil(t, Current())

	env := Create()
	again := Create()
	require.Same(t, env, again)
	assert.True(t, IsReady())

	Destroy()
	assert.True(t, IsReady())
	Destroy()
	assert.False(t, IsReady())
	Destroy()
	assert.False(t, IsReady())
}
