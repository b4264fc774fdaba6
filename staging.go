// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memreg

import (
	"fmt"
	"sync"

	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
)

// Staging holds allocators registered before the manager exists.
// Each Module owns one.
type Staging struct {
	mux        sync.Mutex
	allocators []mempool.Allocator
	softLimit  int
	strict     bool
	warned     bool

	poolSize int
	arena    *mempool.Arena
	logger   logging.Logger
}

// NewStaging .
func NewStaging(conf Config) *Staging {
	conf.setDefaults()
	return &Staging{
		softLimit: conf.StagingSoftLimit,
		strict:    conf.StagingStrict,
		poolSize:  conf.BootstrapPoolSize,
		logger:    conf.logger(),
	}
}

// PreRegisterAllocator stages a.
func (s *Staging) PreRegisterAllocator(a mempool.Allocator) {
	if a == nil {
		return
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.softLimit > 0 && len(s.allocators) >= s.softLimit {
		if s.strict {
			panic(fmt.Errorf("%w: more than %d allocators staged, rejecting %v", ErrStagingOverflow, s.softLimit, mempool.NameOf(a)))
		}
		if !s.warned {
			s.warned = true
			s.logger.Warn("staging: more than %d allocators registered before the environment, latest: %v", s.softLimit, mempool.NameOf(a))
		}
	}
	s.allocators = append(s.allocators, a)
}

// Drain hands every staged allocator to fn in staging order and empties the
// buffer. It returns how many were drained.
func (s *Staging) Drain(fn func(a mempool.Allocator)) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	n := len(s.allocators)
	for _, a := range s.allocators {
		fn(a)
	}
	s.allocators = nil
	s.warned = false
	return n
}

// Len .
func (s *Staging) Len() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.allocators)
}

// bootstrapAlloc carves an aligned block from the bootstrap arena, falling
// back to the heap when the arena is exhausted.
func (s *Staging) bootstrapAlloc(size, alignment int) []byte {
	s.mux.Lock()
	if s.arena == nil {
		s.arena = mempool.NewArena(s.poolSize)
	}
	arena := s.arena
	s.mux.Unlock()

	if mem, ok := arena.Alloc(size, alignment); ok {
		return mem
	}
	s.logger.Warn("staging: bootstrap pool exhausted (%d/%d), %d bytes taken from the heap", arena.Used(), arena.Cap(), size)
	return mempool.AlignedBlock(size, alignment)
}
