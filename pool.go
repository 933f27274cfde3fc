package asyncrt

import "sync"

// Pool manages object pools for the two allocation-heavy values a render
// churns through: Frames (pushed and popped constantly for every block)
// and OutputBuffers (one per sub-block). Reuse avoids repeatedly paying
// for map allocation on every block entry/exit.
type Pool struct {
	framePool  sync.Pool
	bufferPool sync.Pool

	metrics PoolMetrics
}

// PoolMetrics tracks pool hit/miss counts for observability.
type PoolMetrics struct {
	mu            sync.RWMutex
	frameHits     uint64
	frameMisses   uint64
	bufferHits    uint64
	bufferMisses  uint64
}

// NewPool creates a pool with initialized sync.Pools.
func NewPool() *Pool {
	p := &Pool{}
	p.framePool = sync.Pool{
		New: func() any {
			return &Frame{variables: make(map[string]any, 8)}
		},
	}
	p.bufferPool = sync.Pool{
		New: func() any {
			return &OutputBuffer{items: make([]any, 0, 8)}
		},
	}
	return p
}

// AcquireFrame gets a Frame from the pool (or allocates one), resetting it
// to represent a fresh child of parent.
func (p *Pool) AcquireFrame(parent *Frame, isolateWrites, createScope bool) *Frame {
	f, ok := p.framePool.Get().(*Frame)
	if !ok {
		p.metrics.mu.Lock()
		p.metrics.frameMisses++
		p.metrics.mu.Unlock()
		return newFrame(parent, isolateWrites, createScope)
	}

	f.id = nextFrameID()
	f.parent = parent
	f.isolateWrites = isolateWrites
	f.createScope = createScope
	f.isAsyncBlock = false
	f.sequentialLoopBody = false
	for k := range f.variables {
		delete(f.variables, k)
	}
	f.asyncVars = nil
	f.writeCounters = nil
	f.promiseResolves = nil

	p.metrics.mu.Lock()
	p.metrics.frameHits++
	p.metrics.mu.Unlock()
	return f
}

// ReleaseFrame returns a Frame to the pool. The root frame and any frame a
// caller might still hold a reference to (outside the strict push/pop
// discipline) must never be released.
func (p *Pool) ReleaseFrame(f *Frame) {
	if f == nil {
		return
	}
	p.framePool.Put(f)
}

// AcquireBuffer gets an OutputBuffer from the pool (or allocates one).
func (p *Pool) AcquireBuffer() *OutputBuffer {
	b, ok := p.bufferPool.Get().(*OutputBuffer)
	if !ok {
		p.metrics.mu.Lock()
		p.metrics.bufferMisses++
		p.metrics.mu.Unlock()
		return NewOutputBuffer()
	}
	b.items = b.items[:0]
	p.metrics.mu.Lock()
	p.metrics.bufferHits++
	p.metrics.mu.Unlock()
	return b
}

// ReleaseBuffer returns an OutputBuffer to the pool. Only safe once the
// buffer has been fully flattened — its items slice is about to be reused.
func (p *Pool) ReleaseBuffer(b *OutputBuffer) {
	if b == nil {
		return
	}
	p.bufferPool.Put(b)
}

// Metrics returns a copy of the current pool hit/miss counts.
func (p *Pool) Metrics() PoolMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolMetrics{
		frameHits:    p.metrics.frameHits,
		frameMisses:  p.metrics.frameMisses,
		bufferHits:   p.metrics.bufferHits,
		bufferMisses: p.metrics.bufferMisses,
	}
}

var globalPool = NewPool()

// GlobalPool returns the package-wide frame/buffer pool.
func GlobalPool() *Pool {
	return globalPool
}
