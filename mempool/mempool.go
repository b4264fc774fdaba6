// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"sync/atomic"
)

// MemPool is a sync.Pool backed allocator.
type MemPool struct {
	*debugger

	name     string
	bufSize  int
	freeSize int
	pool     atomic.Pointer[sync.Pool]
}

// New .
func New(name string, bufSize, freeSize int) *MemPool {
	if bufSize <= 0 {
		bufSize = 64
	}
	if freeSize <= 0 {
		freeSize = 64 * 1024
	}
	if freeSize < bufSize {
		freeSize = bufSize
	}

	mp := &MemPool{
		debugger: newDebugger(),
		name:     name,
		bufSize:  bufSize,
		freeSize: freeSize,
	}
	mp.pool.Store(mp.newPool())
	return mp
}

func (mp *MemPool) newPool() *sync.Pool {
	bufSize := mp.bufSize
	return &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, bufSize)
			return &buf
		},
	}
}

// Name .
func (mp *MemPool) Name() string {
	return mp.name
}

// Malloc .
func (mp *MemPool) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	var ret []byte
	if size > mp.freeSize {
		ret = make([]byte, size)
	} else {
		pbuf := mp.pool.Load().Get().(*[]byte)
		n := cap(*pbuf)
		if n < size {
			*pbuf = append((*pbuf)[:n], make([]byte, size-n)...)
		}
		ret = (*pbuf)[:size]
	}
	mp.incrMalloc(ret)
	return ret
}

// Realloc .
func (mp *MemPool) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := mp.Malloc(size)
	copy(newBuf, buf)
	mp.Free(buf)
	return newBuf
}

// Append .
func (mp *MemPool) Append(buf []byte, more ...byte) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := mp.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	mp.Free(buf)
	return newBuf
}

// AppendString .
func (mp *MemPool) AppendString(buf []byte, more string) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := mp.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	mp.Free(buf)
	return newBuf
}

// Free .
func (mp *MemPool) Free(buf []byte) {
	if buf == nil {
		return
	}
	mp.incrFree(buf)
	if cap(buf) > mp.freeSize {
		return
	}
	mp.pool.Load().Put(&buf)
}

// GarbageCollect drops every cached buffer.
func (mp *MemPool) GarbageCollect() {
	mp.pool.Store(mp.newPool())
}

// Stats .
func (mp *MemPool) Stats() Stats {
	return mp.stats(mp.name, 0)
}
