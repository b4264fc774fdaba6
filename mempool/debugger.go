// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/lesismal/memreg/logging"
)

const maxStackDepth = 20

// debugger is embedded by the allocators in this package to implement
// Tracker and the counting half of Statser. Every tracked buffer is kept in
// the live set, so frees of buffers allocated while tracking was off, and
// double frees, leave the counters alone.
type debugger struct {
	mode int32

	mux         sync.Mutex
	mallocCount int64
	freeCount   int64
	liveBytes   int64
	live        map[uintptr]Record
}

func newDebugger() *debugger {
	return &debugger{}
}

// SetTrackingMode .
// Switching to TrackNone forgets the live set; buffers still out at that
// point are never counted as freed.
func (d *debugger) SetTrackingMode(mode TrackingMode) {
	d.mux.Lock()
	defer d.mux.Unlock()
	if mode == TrackNone {
		d.live = nil
	} else if d.live == nil {
		d.live = map[uintptr]Record{}
	}
	atomic.StoreInt32(&d.mode, int32(mode))
}

// TrackingMode .
func (d *debugger) TrackingMode() TrackingMode {
	return TrackingMode(atomic.LoadInt32(&d.mode))
}

func (d *debugger) incrMalloc(b []byte) {
	if atomic.LoadInt32(&d.mode) != int32(TrackNone) {
		d.incrMallocSlow(b)
	}
}

func (d *debugger) incrMallocSlow(b []byte) {
	if cap(b) == 0 {
		return
	}
	ptr := bytesPointer(b)
	var stack string
	if TrackingMode(atomic.LoadInt32(&d.mode)) == TrackFull {
		stack = callerStack(3)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.live == nil {
		return
	}
	if prev, ok := d.live[ptr]; ok {
		logging.Error("mempool: malloc got a buffer that is still live: %v\nprevious stack:\n%v", ptr, prev.Stack)
		d.freeCount++
		d.liveBytes -= int64(prev.Size)
	}
	d.mallocCount++
	d.liveBytes += int64(cap(b))
	d.live[ptr] = Record{Size: cap(b), Stack: stack}
}

func (d *debugger) incrFree(b []byte) {
	if atomic.LoadInt32(&d.mode) != int32(TrackNone) {
		d.incrFreeSlow(b)
	}
}

func (d *debugger) incrFreeSlow(b []byte) {
	if cap(b) == 0 {
		return
	}
	ptr := bytesPointer(b)
	d.mux.Lock()
	rec, ok := d.live[ptr]
	if ok {
		delete(d.live, ptr)
		d.freeCount++
		d.liveBytes -= int64(rec.Size)
	}
	d.mux.Unlock()
	if !ok && TrackingMode(atomic.LoadInt32(&d.mode)) == TrackFull {
		logging.Warn("mempool: free of a buffer that is not tracked: %v\n%v", ptr, callerStack(3))
	}
}

func (d *debugger) stats(name string, capacity int) Stats {
	mode := d.TrackingMode()
	d.mux.Lock()
	defer d.mux.Unlock()
	st := Stats{
		Name:        name,
		Mode:        mode,
		Capacity:    capacity,
		MallocCount: d.mallocCount,
		FreeCount:   d.freeCount,
		NeedFree:    d.mallocCount - d.freeCount,
		LiveBytes:   d.liveBytes,
	}
	if mode == TrackFull && len(d.live) > 0 {
		st.Records = make([]Record, 0, len(d.live))
		for _, r := range d.live {
			st.Records = append(st.Records, r)
		}
		sort.Slice(st.Records, func(i, j int) bool {
			return st.Records[i].Size > st.Records[j].Size
		})
	}
	return st
}

func callerStack(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+maxStackDepth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(&sb, "\t%d [file: %s] [func: %s] [line: %d]\n", i-skip+1, file, runtime.FuncForPC(pc).Name(), line)
	}
	return sb.String()
}

func bytesPointer(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&(buf[:1][0])))
}
