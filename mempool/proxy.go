// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync/atomic"
)

type sourceBox struct {
	Allocator
}

// Proxy forwards to its own allocator until an override source is set.
// Buffers obtained before a switch may be freed to the new source.
type Proxy struct {
	name     string
	base     Allocator
	override atomic.Pointer[sourceBox]
}

// NewProxy .
func NewProxy(name string, base Allocator) *Proxy {
	return &Proxy{name: name, base: base}
}

// Name .
func (p *Proxy) Name() string {
	return p.name
}

// SetSource implements Overridable.
func (p *Proxy) SetSource(src Allocator) {
	if src == nil {
		p.override.Store(nil)
		return
	}
	p.override.Store(&sourceBox{src})
}

// Source returns the allocator currently serving requests.
func (p *Proxy) Source() Allocator {
	if box := p.override.Load(); box != nil {
		return box.Allocator
	}
	return p.base
}

// Malloc .
func (p *Proxy) Malloc(size int) []byte {
	return p.Source().Malloc(size)
}

// Realloc .
func (p *Proxy) Realloc(buf []byte, size int) []byte {
	return p.Source().Realloc(buf, size)
}

// Append .
func (p *Proxy) Append(buf []byte, more ...byte) []byte {
	return p.Source().Append(buf, more...)
}

// AppendString .
func (p *Proxy) AppendString(buf []byte, more string) []byte {
	return p.Source().AppendString(buf, more)
}

// Free .
func (p *Proxy) Free(buf []byte) {
	p.Source().Free(buf)
}

// SetTrackingMode is applied to the proxy's own allocator.
func (p *Proxy) SetTrackingMode(mode TrackingMode) {
	if t, ok := p.base.(Tracker); ok {
		t.SetTrackingMode(mode)
	}
}

// GarbageCollect .
func (p *Proxy) GarbageCollect() {
	if c, ok := p.base.(Collector); ok {
		c.GarbageCollect()
	}
}

// Stats reports the proxy's own allocator under the proxy's name.
func (p *Proxy) Stats() Stats {
	var st Stats
	if s, ok := p.base.(Statser); ok {
		st = s.Stats()
	}
	st.Name = p.name
	return st
}
