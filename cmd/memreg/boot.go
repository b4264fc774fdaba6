// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/lesismal/memreg"
	"github.com/lesismal/memreg/environment"
	"github.com/lesismal/memreg/mempool"
)

const (
	bootstrapBlockSize  = 256
	bootstrapBlockCount = 64
)

// boot stages the built-in allocators, brings the environment up and
// attaches mod to the manager.
func boot(mod *memreg.Module) *memreg.Manager {
	bootstrap := mod.CreateLazyAllocator(bootstrapBlockSize*bootstrapBlockCount, 64, func(mem []byte) mempool.Allocator {
		return mempool.NewBlockAllocator("bootstrap", mem, bootstrapBlockSize)
	})
	mod.PreRegisterAllocator(bootstrap)
	mod.PreRegisterAllocator(mempool.NewProxy("system", mempool.DefaultMemPool))
	mod.PreRegisterAllocator(mempool.NewAligned("aligned"))
	mod.PreRegisterAllocator(mempool.NewSTD("std"))

	environment.Create()
	mgr := mod.Instance()
	mgr.FinalizeConfiguration()
	return mgr
}
