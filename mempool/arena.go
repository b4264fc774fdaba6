// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"math"
	"sync"
	"unsafe"
)

// Arena is a fixed-size bump allocator. Blocks are never returned to it;
// it exists to carve memory for allocators created during bootstrap.
type Arena struct {
	mux    sync.Mutex
	buf    []byte
	offset int
}

// NewArena .
func NewArena(size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{buf: make([]byte, size)}
}

// IsPowerOfTwo .
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func alignUp(p uintptr, alignment int) uintptr {
	a := uintptr(alignment)
	return (p + a - 1) &^ (a - 1)
}

// Alloc carves size bytes aligned to alignment. It returns false when the
// arena cannot fit the request. alignment must be a power of two.
func (a *Arena) Alloc(size, alignment int) ([]byte, bool) {
	if size <= 0 || !IsPowerOfTwo(alignment) {
		return nil, false
	}
	a.mux.Lock()
	defer a.mux.Unlock()
	if len(a.buf) == 0 {
		return nil, false
	}
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	start := int(alignUp(base+uintptr(a.offset), alignment) - base)
	if start > len(a.buf) || size > len(a.buf)-start {
		return nil, false
	}
	end := start + size
	a.offset = end
	return a.buf[start:end:end], true
}

// Used .
func (a *Arena) Used() int {
	a.mux.Lock()
	defer a.mux.Unlock()
	return a.offset
}

// Cap .
func (a *Arena) Cap() int {
	return len(a.buf)
}

// AlignedBlock allocates size bytes from the heap aligned to alignment.
// It returns nil when the padded size does not fit in an int.
func AlignedBlock(size, alignment int) []byte {
	if size <= 0 || !IsPowerOfTwo(alignment) || size > math.MaxInt-alignment {
		return nil
	}
	raw := make([]byte, size+alignment-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	start := int(alignUp(base, alignment) - base)
	return raw[start : start+size : start+size]
}

// IsAligned reports whether buf starts on an alignment boundary.
func IsAligned(buf []byte, alignment int) bool {
	if cap(buf) == 0 || !IsPowerOfTwo(alignment) {
		return false
	}
	return bytesPointer(buf)&uintptr(alignment-1) == 0
}
