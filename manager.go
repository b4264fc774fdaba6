// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memreg

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
)

// Record is one registered allocator.
type Record struct {
	Name      string
	Allocator mempool.Allocator
}

// Manager is the registry of live allocators.
// Allocators are identified by the interface value, so they must be of a
// comparable type, in practice a pointer.
type Manager struct {
	Name string

	logger logging.Logger

	mux       sync.RWMutex
	records   []Record
	index     map[mempool.Allocator]int
	remaps    map[string]string
	finalized bool

	override     mempool.Allocator
	trackingMode mempool.TrackingMode
	trackingSet  bool
}

// NewManager .
func NewManager(conf Config) *Manager {
	conf.setDefaults()
	m := &Manager{
		Name:   conf.Name,
		logger: conf.logger(),
		index:  map[mempool.Allocator]int{},
		remaps: map[string]string{},
	}
	if conf.TrackingMode != "" {
		mode, err := mempool.ParseTrackingMode(conf.TrackingMode)
		if err != nil {
			m.logger.Error("%v: %v", m.Name, err)
		} else {
			m.SetDefaultTrackingMode(mode)
		}
	}
	for from, to := range conf.Remappings {
		if err := m.AddAllocatorRemapping(from, to); err != nil {
			m.logger.Error("%v: %v", m.Name, err)
		}
	}
	if conf.UseStdOverride {
		m.logger.Warn("%v: std override is enabled, registered allocators will use the Go heap", m.Name)
		m.SetOverrideAllocatorSource(mempool.NewSTD("std-override"))
	}
	return m
}

// RegisterAllocator adds a to the live set. Registering the same allocator
// twice is a no-op.
func (m *Manager) RegisterAllocator(a mempool.Allocator) {
	if a == nil {
		return
	}
	name := mempool.NameOf(a)

	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.index[a]; ok {
		m.logger.Debug("%v: allocator %v already registered", m.Name, name)
		return
	}
	m.index[a] = len(m.records)
	m.records = append(m.records, Record{Name: name, Allocator: a})
	if m.trackingSet {
		if t, ok := a.(mempool.Tracker); ok {
			t.SetTrackingMode(m.trackingMode)
		}
	}
	if m.override != nil && a != m.override {
		if o, ok := a.(mempool.Overridable); ok {
			o.SetSource(m.override)
		}
	}
	m.logger.Debug("%v: allocator %v registered", m.Name, name)
}

// UnregisterAllocator removes a from the live set.
func (m *Manager) UnregisterAllocator(a mempool.Allocator) bool {
	if a == nil {
		return false
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	i, ok := m.index[a]
	if !ok {
		return false
	}
	copy(m.records[i:], m.records[i+1:])
	m.records[len(m.records)-1] = Record{}
	m.records = m.records[:len(m.records)-1]
	delete(m.index, a)
	for j := i; j < len(m.records); j++ {
		m.index[m.records[j].Allocator] = j
	}
	if m.override != nil {
		if o, ok := a.(mempool.Overridable); ok {
			o.SetSource(nil)
		}
	}
	m.logger.Debug("%v: allocator %v unregistered", m.Name, mempool.NameOf(a))
	return true
}

// Contains .
func (m *Manager) Contains(a mempool.Allocator) bool {
	if a == nil {
		return false
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	_, ok := m.index[a]
	return ok
}

// NumAllocators .
func (m *Manager) NumAllocators() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return len(m.records)
}

// Allocators returns a snapshot of the live set in registration order.
func (m *Manager) Allocators() []Record {
	m.mux.RLock()
	defer m.mux.RUnlock()
	ret := make([]Record, len(m.records))
	copy(ret, m.records)
	return ret
}

// Lookup finds an allocator by name. Once the configuration is finalized,
// remapped names resolve to their targets.
func (m *Manager) Lookup(name string) (mempool.Allocator, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if m.finalized {
		if to, ok := m.resolve(name); ok {
			name = to
		}
	}
	for _, r := range m.records {
		if r.Name == name {
			return r.Allocator, true
		}
	}
	return nil, false
}

// resolve follows the remapping chain of name. It reports false for a
// cyclic chain. Must be called with m.mux held.
func (m *Manager) resolve(name string) (string, bool) {
	seen := map[string]struct{}{}
	for {
		to, ok := m.remaps[name]
		if !ok {
			return name, true
		}
		if _, ok = seen[name]; ok {
			return name, false
		}
		seen[name] = struct{}{}
		name = to
	}
}

// AddAllocatorRemapping makes Lookup(from) return the allocator named to.
func (m *Manager) AddAllocatorRemapping(from, to string) error {
	if from == "" || to == "" || from == to {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidRemapping, from, to)
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.finalized {
		return fmt.Errorf("%w: remapping %q -> %q", ErrConfigurationFinalized, from, to)
	}
	m.remaps[from] = to
	return nil
}

// FinalizeConfiguration freezes the remappings and makes them effective.
func (m *Manager) FinalizeConfiguration() {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.finalized {
		return
	}
	m.finalized = true
	for from := range m.remaps {
		if _, ok := m.resolve(from); !ok {
			m.logger.Warn("%v: allocator remapping of %v is cyclic", m.Name, from)
		}
	}
	m.logger.Info("%v: configuration finalized, %d allocators, %d remappings", m.Name, len(m.records), len(m.remaps))
}

// IsFinalized .
func (m *Manager) IsFinalized() bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.finalized
}

// SetOverrideAllocatorSource routes every overridable allocator, current and
// future, to src. A nil src restores their own sources.
func (m *Manager) SetOverrideAllocatorSource(src mempool.Allocator) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.override = src
	for _, r := range m.records {
		if r.Allocator == src {
			continue
		}
		if o, ok := r.Allocator.(mempool.Overridable); ok {
			o.SetSource(src)
		}
	}
}

// OverrideAllocatorSource .
func (m *Manager) OverrideAllocatorSource() mempool.Allocator {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.override
}

// SetDefaultTrackingMode applies mode to every registered allocator and to
// every allocator registered later.
func (m *Manager) SetDefaultTrackingMode(mode mempool.TrackingMode) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.trackingMode = mode
	m.trackingSet = true
	for _, r := range m.records {
		if t, ok := r.Allocator.(mempool.Tracker); ok {
			t.SetTrackingMode(mode)
		}
	}
}

// DefaultTrackingMode .
func (m *Manager) DefaultTrackingMode() mempool.TrackingMode {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.trackingMode
}

// GarbageCollect asks every allocator to release cached memory.
func (m *Manager) GarbageCollect() {
	for _, r := range m.Allocators() {
		if c, ok := r.Allocator.(mempool.Collector); ok {
			c.GarbageCollect()
		}
	}
}

// Stats returns one usage snapshot per registered allocator.
func (m *Manager) Stats() []mempool.Stats {
	records := m.Allocators()
	ret := make([]mempool.Stats, 0, len(records))
	for _, r := range records {
		var st mempool.Stats
		if s, ok := r.Allocator.(mempool.Statser); ok {
			st = s.Stats()
		}
		st.Name = r.Name
		ret = append(ret, st)
	}
	return ret
}

// DumpJSON .
func (m *Manager) DumpJSON() ([]byte, error) {
	return json.MarshalIndent(m.Stats(), "", "  ")
}

// teardown drops every record and clears the override source.
func (m *Manager) teardown() {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.override != nil {
		for _, r := range m.records {
			if o, ok := r.Allocator.(mempool.Overridable); ok && r.Allocator != m.override {
				o.SetSource(nil)
			}
		}
		m.override = nil
	}
	m.logger.Info("%v: destroyed with %d allocators registered", m.Name, len(m.records))
	m.records = nil
	m.index = map[mempool.Allocator]int{}
}
