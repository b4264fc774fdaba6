// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memreg

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lesismal/memreg/environment"
	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
)

// ManagerVariableName is the environment variable holding the shared Manager.
const ManagerVariableName = "memreg.AllocatorManager"

// Module is one independently initialized unit of a process. Modules stage
// allocators until the environment is up and share a single Manager through
// it afterwards.
type Module struct {
	Name string

	conf    Config
	logger  logging.Logger
	staging *Staging

	mux    sync.Mutex
	handle *environment.Variable[*Manager]

	// attached is also what a crash dump should look at.
	attached atomic.Pointer[attachment]
}

// attachment pairs the shared Manager with the environment it was found in.
type attachment struct {
	env *environment.Environment
	mgr *Manager
}

// NewModule .
func NewModule(name string, conf Config) *Module {
	conf.setDefaults()
	return &Module{
		Name:    name,
		conf:    conf,
		logger:  conf.logger(),
		staging: NewStaging(conf),
	}
}

// Staging returns the module's staging buffer.
func (m *Module) Staging() *Staging {
	return m.staging
}

// IsReady reports whether the shared Manager exists in the environment.
func (m *Module) IsReady() bool {
	env := environment.Current()
	return env != nil && env.IsConstructed(ManagerVariableName)
}

// current returns the Manager this module is attached to. It returns nil
// when the module is detached or its environment has been destroyed since.
func (m *Module) current() *Manager {
	if at := m.attached.Load(); at != nil && at.env == environment.Current() {
		return at.mgr
	}
	return nil
}

// detach drops an attachment whose environment is gone. Must be called with
// m.mux held.
func (m *Module) detach() {
	if m.handle == nil {
		return
	}
	m.logger.Warn("%v: environment destroyed under the allocator manager, detaching", m.Name)
	m.handle.Reset()
	m.handle = nil
	m.attached.Store(nil)
}

// Instance returns the shared Manager, creating it when no module has.
// The first call in a module registers everything the module staged before
// returning. It panics with ErrEnvironmentNotReady before environment.Create,
// and again once the environment is destroyed.
func (m *Module) Instance() *Manager {
	if mgr := m.current(); mgr != nil {
		return mgr
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	if mgr := m.current(); mgr != nil {
		return mgr
	}
	m.detach()

	env := environment.Current()
	if env == nil {
		panic(ErrEnvironmentNotReady)
	}
	handle := environment.CreateVariable(env, ManagerVariableName, func() *Manager {
		m.logger.Info("%v: creating allocator manager", m.Name)
		return NewManager(m.conf)
	})
	mgr := handle.Get()
	if n := m.staging.Drain(mgr.RegisterAllocator); n > 0 {
		m.logger.Debug("%v: %d staged allocators registered", m.Name, n)
	}
	m.handle = handle
	m.attached.Store(&attachment{env: env, mgr: mgr})
	return mgr
}

// PreRegisterAllocator stages a, or registers it directly when this module
// is already attached to the Manager.
func (m *Module) PreRegisterAllocator(a mempool.Allocator) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if mgr := m.current(); mgr != nil {
		mgr.RegisterAllocator(a)
		return
	}
	m.staging.PreRegisterAllocator(a)
}

// RegisterAllocator registers a with the Manager when it exists and stages
// it otherwise.
func (m *Module) RegisterAllocator(a mempool.Allocator) {
	if m.IsReady() {
		m.Instance().RegisterAllocator(a)
		return
	}
	m.PreRegisterAllocator(a)
}

// Destroy tears the Manager down and releases this module's reference to
// it. The Manager is gone once every module has done so.
func (m *Module) Destroy() {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.handle == nil {
		return
	}
	if m.handle.IsConstructed() {
		m.handle.Get().teardown()
	}
	m.handle.Reset()
	m.handle = nil
	m.attached.Store(nil)
}

// CreateLazyAllocator builds an allocator on memory from the module's
// bootstrap pool. Neither the environment nor the Manager needs to exist.
// The result is not registered.
func (m *Module) CreateLazyAllocator(size, alignment int, create func(mem []byte) mempool.Allocator) mempool.Allocator {
	if size <= 0 {
		panic(ErrInvalidSize)
	}
	if !mempool.IsPowerOfTwo(alignment) {
		panic(ErrInvalidAlignment)
	}
	mem := m.staging.bootstrapAlloc(size, alignment)
	if mem == nil {
		panic(fmt.Errorf("%w: %d bytes aligned to %d", ErrInvalidSize, size, alignment))
	}
	return create(mem)
}
