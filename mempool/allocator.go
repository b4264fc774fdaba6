// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"strings"
)

// Allocator is the capability set every registered allocator provides.
type Allocator interface {
	Malloc(size int) []byte
	Realloc(buf []byte, size int) []byte
	Append(buf []byte, more ...byte) []byte
	AppendString(buf []byte, more string) []byte
	Free(buf []byte)
}

// Named is implemented by allocators that carry a registry name.
type Named interface {
	Name() string
}

// Statser is implemented by allocators that report usage.
type Statser interface {
	Stats() Stats
}

// Tracker is implemented by allocators whose allocation tracking can be switched.
type Tracker interface {
	SetTrackingMode(mode TrackingMode)
}

// Overridable is implemented by allocators that can forward to another source.
// A nil source restores the allocator's own.
type Overridable interface {
	SetSource(src Allocator)
}

// Collector is implemented by allocators that can release cached memory.
type Collector interface {
	GarbageCollect()
}

// TrackingMode controls how much bookkeeping an allocator does.
type TrackingMode int32

const (
	// TrackNone disables tracking.
	TrackNone TrackingMode = iota
	// TrackCounts keeps malloc/free counters and live bytes.
	TrackCounts
	// TrackFull additionally records every live buffer with its caller stack.
	TrackFull
)

func (m TrackingMode) String() string {
	switch m {
	case TrackNone:
		return "none"
	case TrackCounts:
		return "counts"
	case TrackFull:
		return "full"
	}
	return fmt.Sprintf("TrackingMode(%d)", int32(m))
}

// ParseTrackingMode .
func ParseTrackingMode(s string) (TrackingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TrackNone, nil
	case "counts":
		return TrackCounts, nil
	case "full":
		return TrackFull, nil
	}
	return TrackNone, fmt.Errorf("invalid tracking mode: %q", s)
}

// Record describes one live buffer under TrackFull.
type Record struct {
	Size  int    `json:"size"`
	Stack string `json:"stack"`
}

// Stats is a usage snapshot of one allocator.
type Stats struct {
	Name        string       `json:"name"`
	Mode        TrackingMode `json:"mode"`
	Capacity    int          `json:"capacity"`
	MallocCount int64        `json:"mallocCount"`
	FreeCount   int64        `json:"freeCount"`
	NeedFree    int64        `json:"needFree"`
	LiveBytes   int64        `json:"liveBytes"`
	Records     []Record     `json:"records,omitempty"`
}

// NameOf returns the allocator's name, or its dynamic type when it has none.
func NameOf(a Allocator) string {
	if n, ok := a.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", a)
}

// DefaultMemPool .
var DefaultMemPool = New("default", 1024, 1024*1024*1024)

// Malloc exports default package method.
func Malloc(size int) []byte {
	return DefaultMemPool.Malloc(size)
}

// Realloc exports default package method.
func Realloc(buf []byte, size int) []byte {
	return DefaultMemPool.Realloc(buf, size)
}

// Append exports default package method.
func Append(buf []byte, more ...byte) []byte {
	return DefaultMemPool.Append(buf, more...)
}

// AppendString exports default package method.
func AppendString(buf []byte, more string) []byte {
	return DefaultMemPool.AppendString(buf, more)
}

// Free exports default package method.
func Free(buf []byte) {
	DefaultMemPool.Free(buf)
}
