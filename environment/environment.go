// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package environment provides named, reference-counted singleton slots that
// independently initialized modules use to agree on one shared instance.
package environment

import (
	"errors"
	"fmt"
	"hash/crc32"
	"sync"
)

var (
	// ErrNameCollision is raised when two different names hash to one slot.
	ErrNameCollision = errors.New("environment: variable name collision")
	// ErrTypeMismatch is raised when a slot is requested as a different type.
	ErrTypeMismatch = errors.New("environment: variable type mismatch")
)

// Destroyer is implemented by variable values that release resources when
// the last reference to their slot is reset.
type Destroyer interface {
	Close()
}

type slot struct {
	name        string
	value       interface{}
	refs        int
	constructed bool
}

// Environment is a store of named variables.
type Environment struct {
	mux  sync.Mutex
	vars map[uint32]*slot
}

// New .
func New() *Environment {
	return &Environment{vars: map[uint32]*slot{}}
}

// Hash returns the stable key of a variable name.
func Hash(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(name))
}

// IsConstructed reports whether the named variable exists.
func (e *Environment) IsConstructed(name string) bool {
	e.mux.Lock()
	defer e.mux.Unlock()
	s, ok := e.vars[Hash(name)]
	return ok && s.name == name && s.constructed
}

// Len returns the number of live variables.
func (e *Environment) Len() int {
	e.mux.Lock()
	defer e.mux.Unlock()
	return len(e.vars)
}

// lookup must be called with e.mux held.
func (e *Environment) lookup(name string) (*slot, bool) {
	s, ok := e.vars[Hash(name)]
	if !ok {
		return nil, false
	}
	if s.name != name {
		panic(fmt.Errorf("%w: %q and %q", ErrNameCollision, s.name, name))
	}
	return s, true
}

func (e *Environment) release(key uint32, s *slot) {
	var value interface{}
	e.mux.Lock()
	s.refs--
	if s.refs == 0 {
		value = s.value
		s.value = nil
		s.constructed = false
		if e.vars[key] == s {
			delete(e.vars, key)
		}
	}
	e.mux.Unlock()
	if d, ok := value.(Destroyer); ok {
		d.Close()
	}
}

// Variable is one reference to a named slot.
type Variable[T any] struct {
	env   *Environment
	key   uint32
	name  string
	slot  *slot
	value T
	once  sync.Once

	released bool
}

// CreateVariable returns a reference to the named variable, constructing it
// with ctor when no module has done so yet.
func CreateVariable[T any](env *Environment, name string, ctor func() T) *Variable[T] {
	env.mux.Lock()
	defer env.mux.Unlock()
	s, ok := env.lookup(name)
	if !ok {
		s = &slot{name: name}
		env.vars[Hash(name)] = s
	}
	if !s.constructed {
		s.value = ctor()
		s.constructed = true
	}
	return attach[T](env, s)
}

// FindVariable returns a reference to the named variable if it exists.
func FindVariable[T any](env *Environment, name string) (*Variable[T], bool) {
	env.mux.Lock()
	defer env.mux.Unlock()
	s, ok := env.lookup(name)
	if !ok || !s.constructed {
		return nil, false
	}
	return attach[T](env, s), true
}

// attach must be called with env.mux held.
func attach[T any](env *Environment, s *slot) *Variable[T] {
	value, ok := s.value.(T)
	if !ok {
		panic(fmt.Errorf("%w: %q holds %T", ErrTypeMismatch, s.name, s.value))
	}
	s.refs++
	return &Variable[T]{
		env:   env,
		key:   Hash(s.name),
		name:  s.name,
		slot:  s,
		value: value,
	}
}

// Name .
func (v *Variable[T]) Name() string {
	return v.name
}

// Get returns the shared instance.
func (v *Variable[T]) Get() T {
	return v.value
}

// IsConstructed reports whether the slot still holds an instance.
func (v *Variable[T]) IsConstructed() bool {
	v.env.mux.Lock()
	defer v.env.mux.Unlock()
	return !v.released && v.slot.constructed
}

// Reset releases this reference. The last reset destroys the instance.
func (v *Variable[T]) Reset() {
	v.once.Do(func() {
		v.env.mux.Lock()
		v.released = true
		v.env.mux.Unlock()
		v.env.release(v.key, v.slot)
		var zero T
		v.value = zero
	})
}
