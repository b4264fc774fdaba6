package memreg

import (
	"encoding/json"
	"testing"

	"github.com/lesismal/memreg/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRegister(t *testing.T) {
	conf, _ := quietConfig()
	m := NewManager(conf)
	a := mempool.New("a", 64, 1024)
	b := mempool.NewAligned("b")
	c := mempool.NewSTD("c")

	m.RegisterAllocator(a)
	m.RegisterAllocator(b)
	m.RegisterAllocator(a)
	m.RegisterAllocator(nil)
	m.RegisterAllocator(c)
	require.Equal(t, 3, m.NumAllocators())

	assert.True(t, m.UnregisterAllocator(b))
	assert.False(t, m.UnregisterAllocator(b))
	assert.False(t, m.Contains(b))

	records := m.Allocators()
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Name)
	assert.Equal(t, "c", records[1].Name)

	found, ok := m.Lookup("c")
	require.True(t, ok)
	assert.Same(t, c, found)
	_, ok = m.Lookup("b")
	assert.False(t, ok)

	assert.True(t, m.UnregisterAllocator(a))
	assert.True(t, m.Contains(c))
	found, ok = m.Lookup("c")
	require.True(t, ok)
	assert.Same(t, c, found)
}

func TestManagerRemapping(t *testing.T) {
	conf, buf := quietConfig()
	conf.Remappings = map[string]string{"legacy": "system"}
	m := NewManager(conf)
	system := mempool.New("system", 64, 1024)
	legacy := mempool.New("legacy", 64, 1024)
	m.RegisterAllocator(system)
	m.RegisterAllocator(legacy)

	require.NoError(t, m.AddAllocatorRemapping("old", "legacy"))
	require.ErrorIs(t, m.AddAllocatorRemapping("x", "x"), ErrInvalidRemapping)
	require.ErrorIs(t, m.AddAllocatorRemapping("", "x"), ErrInvalidRemapping)

	found, _ := m.Lookup("legacy")
	assert.Same(t, legacy, found, "remappings apply only after finalization")

	m.FinalizeConfiguration()
	assert.True(t, m.IsFinalized())
	found, _ = m.Lookup("legacy")
	assert.Same(t, system, found)
	found, _ = m.Lookup("old")
	assert.Same(t, system, found)

	require.ErrorIs(t, m.AddAllocatorRemapping("late", "system"), ErrConfigurationFinalized)
	assert.Contains(t, buf.String(), "configuration finalized")
}

func TestManagerCyclicRemapping(t *testing.T) {
	conf, buf := quietConfig()
	m := NewManager(conf)
	a := mempool.NewSTD("a")
	m.RegisterAllocator(a)
	require.NoError(t, m.AddAllocatorRemapping("a", "b"))
	require.NoError(t, m.AddAllocatorRemapping("b", "a"))
	m.FinalizeConfiguration()
	assert.Contains(t, buf.String(), "is cyclic")

	found, ok := m.Lookup("a")
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestManagerOverrideSource(t *testing.T) {
	conf, _ := quietConfig()
	m := NewManager(conf)
	early := mempool.NewProxy("early", mempool.New("early-pool", 64, 1024))
	m.RegisterAllocator(early)

	override := mempool.NewSTD("override")
	m.RegisterAllocator(override)
	m.SetOverrideAllocatorSource(override)
	assert.Same(t, override, m.OverrideAllocatorSource())
	assert.Equal(t, override, early.Source())

	late := mempool.NewProxy("late", mempool.NewSTD("late-std"))
	m.RegisterAllocator(late)
	assert.Equal(t, override, late.Source())

	require.True(t, m.UnregisterAllocator(late))
	assert.NotEqual(t, override, late.Source())

	m.SetOverrideAllocatorSource(nil)
	assert.NotEqual(t, override, early.Source())
}

func TestManagerStdOverrideFromConfig(t *testing.T) {
	conf, buf := quietConfig()
	conf.UseStdOverride = true
	m := NewManager(conf)
	p := mempool.NewProxy("proxied", mempool.New("pool", 64, 1024))
	m.RegisterAllocator(p)
	assert.Equal(t, "std-override", mempool.NameOf(p.Source()))
	assert.Contains(t, buf.String(), "std override is enabled")

	m.teardown()
	assert.Equal(t, "pool", mempool.NameOf(p.Source()))
	assert.Nil(t, m.OverrideAllocatorSource())
	assert.Equal(t, 0, m.NumAllocators())
}

func TestManagerTrackingMode(t *testing.T) {
	conf, _ := quietConfig()
	conf.TrackingMode = "counts"
	m := NewManager(conf)
	assert.Equal(t, mempool.TrackCounts, m.DefaultTrackingMode())

	a := mempool.New("a", 64, 1024)
	m.RegisterAllocator(a)
	a.Free(a.Malloc(10))
	assert.Equal(t, mempool.TrackCounts, a.TrackingMode())
	assert.Equal(t, int64(1), a.Stats().MallocCount)

	m.SetDefaultTrackingMode(mempool.TrackFull)
	assert.Equal(t, mempool.TrackFull, a.TrackingMode())
	buf := a.Malloc(10)
	st := a.Stats()
	require.Len(t, st.Records, 1)
	a.Free(buf)

	untracked := mempool.New("untracked", 64, 1024)
	plain := NewManager(DefaultConfig())
	plain.RegisterAllocator(untracked)
	assert.Equal(t, mempool.TrackNone, untracked.TrackingMode())
}

func TestManagerStats(t *testing.T) {
	conf, _ := quietConfig()
	conf.TrackingMode = "counts"
	m := NewManager(conf)
	a := mempool.New("pool", 64, 1024)
	b := mempool.NewBlockAllocator("blocks", make([]byte, 512), 64)
	m.RegisterAllocator(a)
	m.RegisterAllocator(b)
	m.RegisterAllocator(struct{ mempool.Allocator }{mempool.NewSTD("wrapped")})

	a.Malloc(10)
	b.Malloc(10)
	b.Malloc(10)

	stats := m.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, "pool", stats[0].Name)
	assert.Equal(t, int64(1), stats[0].NeedFree)
	assert.Equal(t, "blocks", stats[1].Name)
	assert.Equal(t, 512, stats[1].Capacity)
	assert.Equal(t, int64(2), stats[1].MallocCount)
	assert.Equal(t, int64(0), stats[2].MallocCount)

	data, err := m.DumpJSON()
	require.NoError(t, err)
	var decoded []mempool.Stats
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, stats, decoded)

	m.GarbageCollect()
	assert.Len(t, a.Malloc(10), 10)
}
