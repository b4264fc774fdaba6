// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package environment

import (
	"sync"
	"sync/atomic"
)

var (
	defaultMux  sync.Mutex
	defaultEnv  atomic.Pointer[Environment]
	defaultRefs int
)

// Create brings up the process environment, or attaches to it when it is
// already up. Every Create must be paired with a Destroy.
func Create() *Environment {
	defaultMux.Lock()
	defer defaultMux.Unlock()
	env := defaultEnv.Load()
	if env == nil {
		env = New()
		defaultEnv.Store(env)
	}
	defaultRefs++
	return env
}

// Current returns the process environment, nil before Create.
func Current() *Environment {
	return defaultEnv.Load()
}

// IsReady reports whether the process environment is up.
func IsReady() bool {
	return Current() != nil
}

// Destroy releases one Create. The environment is dropped with the last one.
func Destroy() {
	defaultMux.Lock()
	defer defaultMux.Unlock()
	if defaultRefs == 0 {
		return
	}
	defaultRefs--
	if defaultRefs == 0 {
		defaultEnv.Store(nil)
	}
}
