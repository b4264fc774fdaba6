// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
)

// BlockAllocator splits caller-provided memory into equal blocks kept on a
// free list. Requests larger than a block, or made while every block is in
// use, are served from the heap.
type BlockAllocator struct {
	*debugger

	name      string
	mux       sync.Mutex
	mem       []byte
	blockSize int
	free      []int
	used      []bool
}

// NewBlockAllocator .
func NewBlockAllocator(name string, mem []byte, blockSize int) *BlockAllocator {
	if blockSize <= 0 {
		blockSize = minAlignedBufferSize
	}
	n := len(mem) / blockSize
	ba := &BlockAllocator{
		debugger:  newDebugger(),
		name:      name,
		mem:       mem[:n*blockSize],
		blockSize: blockSize,
		free:      make([]int, 0, n),
		used:      make([]bool, n),
	}
	for i := n - 1; i >= 0; i-- {
		ba.free = append(ba.free, i)
	}
	return ba
}

// Name .
func (ba *BlockAllocator) Name() string {
	return ba.name
}

// BlockSize .
func (ba *BlockAllocator) BlockSize() int {
	return ba.blockSize
}

// Available returns the number of free blocks.
func (ba *BlockAllocator) Available() int {
	ba.mux.Lock()
	defer ba.mux.Unlock()
	return len(ba.free)
}

// Malloc .
func (ba *BlockAllocator) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	var ret []byte
	if size <= ba.blockSize {
		ba.mux.Lock()
		if n := len(ba.free); n > 0 {
			idx := ba.free[n-1]
			ba.free = ba.free[:n-1]
			ba.used[idx] = true
			start := idx * ba.blockSize
			ret = ba.mem[start : start+size : start+ba.blockSize]
		}
		ba.mux.Unlock()
	}
	if ret == nil {
		ret = make([]byte, size)
	}
	ba.incrMalloc(ret)
	return ret
}

// Realloc .
func (ba *BlockAllocator) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := ba.Malloc(size)
	copy(newBuf, buf)
	ba.Free(buf)
	return newBuf
}

// Append .
func (ba *BlockAllocator) Append(buf []byte, more ...byte) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := ba.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	ba.Free(buf)
	return newBuf
}

// AppendString .
func (ba *BlockAllocator) AppendString(buf []byte, more string) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := ba.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	ba.Free(buf)
	return newBuf
}

// Free returns a block to the free list. Heap buffers are left to the GC.
func (ba *BlockAllocator) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	idx, ok := ba.blockIndex(buf)
	if !ok {
		ba.incrFree(buf)
		return
	}
	ba.mux.Lock()
	defer ba.mux.Unlock()
	if !ba.used[idx] {
		return
	}
	ba.incrFree(buf)
	ba.used[idx] = false
	ba.free = append(ba.free, idx)
}

func (ba *BlockAllocator) blockIndex(buf []byte) (int, bool) {
	if len(ba.mem) == 0 {
		return 0, false
	}
	base := bytesPointer(ba.mem)
	ptr := bytesPointer(buf)
	if ptr < base || ptr >= base+uintptr(len(ba.mem)) {
		return 0, false
	}
	off := int(ptr - base)
	if off%ba.blockSize != 0 {
		return 0, false
	}
	return off / ba.blockSize, true
}

// Stats .
func (ba *BlockAllocator) Stats() Stats {
	return ba.stats(ba.name, len(ba.mem))
}
