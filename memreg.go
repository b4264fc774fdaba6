// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package memreg keeps the registry of every live allocator in a process.
//
// Allocators may be created before the environment is up; they are staged in
// their Module and registered when the Module first asks for the Manager:
//
//	memreg.PreRegisterAllocator(mempool.New("early", 1024, 64*1024))
//	environment.Create()
//	mgr := memreg.Instance() // "early" is registered here
package memreg

import (
	"github.com/lesismal/memreg/mempool"
)

// DefaultModule is the module used by the package level functions.
var DefaultModule = NewModule("default", DefaultConfig())

// Instance returns the Manager through DefaultModule.
func Instance() *Manager {
	return DefaultModule.Instance()
}

// IsReady .
func IsReady() bool {
	return DefaultModule.IsReady()
}

// Destroy .
func Destroy() {
	DefaultModule.Destroy()
}

// RegisterAllocator .
func RegisterAllocator(a mempool.Allocator) {
	DefaultModule.RegisterAllocator(a)
}

// PreRegisterAllocator .
func PreRegisterAllocator(a mempool.Allocator) {
	DefaultModule.PreRegisterAllocator(a)
}

// CreateLazyAllocator .
func CreateLazyAllocator(size, alignment int, create func(mem []byte) mempool.Allocator) mempool.Allocator {
	return DefaultModule.CreateLazyAllocator(size, alignment, create)
}
