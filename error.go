// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package memreg

import (
	"errors"
)

var (
	// ErrEnvironmentNotReady is raised when the manager is requested before
	// the environment has been created.
	ErrEnvironmentNotReady = errors.New("memreg: environment is not ready")
	// ErrStagingOverflow is raised in strict mode when more allocators are
	// staged than the configured limit.
	ErrStagingOverflow = errors.New("memreg: staging buffer overflow")
	// ErrInvalidAlignment .
	ErrInvalidAlignment = errors.New("memreg: alignment must be a power of two")
	// ErrInvalidSize .
	ErrInvalidSize = errors.New("memreg: size must be positive")
	// ErrConfigurationFinalized .
	ErrConfigurationFinalized = errors.New("memreg: configuration already finalized")
	// ErrInvalidRemapping .
	ErrInvalidRemapping = errors.New("memreg: invalid allocator remapping")
)
