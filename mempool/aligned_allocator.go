// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"math/bits"
	"sync"
)

const (
	minAlignedBufferSizeBits = 5
	maxAlignedBufferSizeBits = 16
	minAlignedBufferSize     = 1 << minAlignedBufferSizeBits                           // 32
	maxAlignedBufferSize     = 1 << maxAlignedBufferSizeBits                           // 64k
	alignedPoolBucketNum     = maxAlignedBufferSizeBits - minAlignedBufferSizeBits + 1 // 12
)

// AlignedAllocator hands out buffers whose capacity is a power of two
// between 32 bytes and 64k. Larger requests go to the heap.
type AlignedAllocator struct {
	*debugger

	name  string
	mux   sync.RWMutex
	pools [alignedPoolBucketNum]*sync.Pool
}

// NewAligned .
func NewAligned(name string) *AlignedAllocator {
	amp := &AlignedAllocator{
		debugger: newDebugger(),
		name:     name,
	}
	amp.init()
	return amp
}

func (amp *AlignedAllocator) init() {
	for i := range amp.pools {
		size := 1 << (i + minAlignedBufferSizeBits)
		amp.pools[i] = &sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		}
	}
}

func alignedIndex(size int) int {
	if size <= minAlignedBufferSize {
		return 0
	}
	return bits.Len(uint(size-1)) - minAlignedBufferSizeBits
}

// Name .
func (amp *AlignedAllocator) Name() string {
	return amp.name
}

// Malloc .
func (amp *AlignedAllocator) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	var ret []byte
	if size <= maxAlignedBufferSize {
		amp.mux.RLock()
		pool := amp.pools[alignedIndex(size)]
		amp.mux.RUnlock()
		ret = (*(pool.Get().(*[]byte)))[:size]
	} else {
		ret = make([]byte, size)
	}
	amp.incrMalloc(ret)
	return ret
}

// Realloc .
func (amp *AlignedAllocator) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := amp.Malloc(size)
	copy(newBuf, buf)
	amp.Free(buf)
	return newBuf
}

// Append .
func (amp *AlignedAllocator) Append(buf []byte, more ...byte) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := amp.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	amp.Free(buf)
	return newBuf
}

// AppendString .
func (amp *AlignedAllocator) AppendString(buf []byte, more string) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := amp.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	amp.Free(buf)
	return newBuf
}

// Free .
func (amp *AlignedAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	amp.incrFree(buf)
	size := cap(buf)
	if size < minAlignedBufferSize || size > maxAlignedBufferSize || size&(size-1) != 0 {
		return
	}
	amp.mux.RLock()
	pool := amp.pools[alignedIndex(size)]
	amp.mux.RUnlock()
	buf = buf[:size]
	pool.Put(&buf)
}

// GarbageCollect drops every cached buffer.
func (amp *AlignedAllocator) GarbageCollect() {
	amp.mux.Lock()
	defer amp.mux.Unlock()
	amp.init()
}

// Stats .
func (amp *AlignedAllocator) Stats() Stats {
	return amp.stats(amp.name, 0)
}
