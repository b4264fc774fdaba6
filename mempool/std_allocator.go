package mempool

// stdAllocator allocates from the Go heap and leaves freeing to the GC.
type stdAllocator struct {
	*debugger
	name string
}

// NewSTD .
func NewSTD(name string) Allocator {
	return &stdAllocator{
		debugger: newDebugger(),
		name:     name,
	}
}

// Name .
func (a *stdAllocator) Name() string {
	return a.name
}

// Malloc .
func (a *stdAllocator) Malloc(size int) []byte {
	if size < 0 {
		return nil
	}
	ret := make([]byte, size)
	a.incrMalloc(ret)
	return ret
}

// Realloc .
func (a *stdAllocator) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	newBuf := a.Malloc(size)
	copy(newBuf, buf)
	a.Free(buf)
	return newBuf
}

// Free .
func (a *stdAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}
	a.incrFree(buf)
}

// Append .
func (a *stdAllocator) Append(buf []byte, more ...byte) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := a.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	a.Free(buf)
	return newBuf
}

// AppendString .
func (a *stdAllocator) AppendString(buf []byte, more string) []byte {
	if cap(buf)-len(buf) >= len(more) {
		return append(buf, more...)
	}
	newBuf := a.Malloc(len(buf) + len(more))
	copy(newBuf, buf)
	copy(newBuf[len(buf):], more)
	a.Free(buf)
	return newBuf
}

// Stats .
func (a *stdAllocator) Stats() Stats {
	return a.stats(a.name, 0)
}
