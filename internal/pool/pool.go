// Package pool is the explicit allocator handle shared by one compilation
// and the executions that follow it: a free list of fixed-size code buffers
// plus string and double interning tables.
package pool

import (
	"math"
	"sync"
)

// DefaultBufferSize is the capacity of buffers handed out by AcquireBuffer.
const DefaultBufferSize = 512

// Pool hands out code buffers and interns constants. The zero value is not
// usable; create one with New.
type Pool struct {
	mu sync.Mutex

	bufferSize int
	free       [][]byte
	acquired   int
	released   int

	strings     []string
	stringIndex map[string]uint32
	doubles     []float64
	doubleIndex map[uint64]uint32
}

func New(bufferSize int) *Pool {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Pool{
		bufferSize:  bufferSize,
		stringIndex: make(map[string]uint32),
		doubleIndex: make(map[uint64]uint32),
	}
}

// FromTables rebuilds a pool from tables saved in a program image.
func FromTables(strings []string, doubles []float64) *Pool {
	p := New(0)
	for _, s := range strings {
		p.InternString(s)
	}
	for _, d := range doubles {
		p.InternDouble(d)
	}
	return p
}

// BufferSize is the capacity of every buffer in the pool.
func (p *Pool) BufferSize() int { return p.bufferSize }

// AcquireBuffer returns an empty buffer with BufferSize capacity.
func (p *Pool) AcquireBuffer() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired++
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		return b[:0]
	}
	return make([]byte, 0, p.bufferSize)
}

// ReleaseBuffer returns a buffer for reuse. Buffers of a foreign size are dropped.
func (p *Pool) ReleaseBuffer(b []byte) {
	if cap(b) != p.bufferSize {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released++
	p.free = append(p.free, b[:0])
}

// Outstanding is the number of buffers acquired and not yet released.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired - p.released
}

// InternString returns the handle for s, adding it on first use.
func (p *Pool) InternString(s string) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.stringIndex[s]; ok {
		return h
	}
	h := uint32(len(p.strings))
	p.strings = append(p.strings, s)
	p.stringIndex[s] = h
	return h
}

// String resolves a string handle.
func (p *Pool) String(h uint32) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h) >= len(p.strings) {
		return ""
	}
	return p.strings[h]
}

// InternDouble returns the handle for d. Values are keyed by bit pattern so
// -0 and NaN payloads stay distinct.
func (p *Pool) InternDouble(d float64) uint32 {
	bits := math.Float64bits(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.doubleIndex[bits]; ok {
		return h
	}
	h := uint32(len(p.doubles))
	p.doubles = append(p.doubles, d)
	p.doubleIndex[bits] = h
	return h
}

// Double resolves a double handle.
func (p *Pool) Double(h uint32) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h) >= len(p.doubles) {
		return math.NaN()
	}
	return p.doubles[h]
}

// Strings returns a copy of the string table in handle order.
func (p *Pool) Strings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.strings...)
}

// Doubles returns a copy of the double table in handle order.
func (p *Pool) Doubles() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.doubles...)
}
