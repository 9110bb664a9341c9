// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of BytePool counters.
type Stats struct {
	Size      int   `json:"size"`
	Gets      int64 `json:"gets"`
	Puts      int64 `json:"puts"`
	Allocs    int64 `json:"allocs"`
	InUse     int64 `json:"in_use"`
	Discarded int64 `json:"discarded"`
}

// BytePool hands out zero-length slices with a fixed capacity.
// It is safe for concurrent use.
type BytePool struct {
	size int
	pool sync.Pool

	gets      atomic.Int64
	puts      atomic.Int64
	allocs    atomic.Int64
	discarded atomic.Int64
}

// NewBytePool creates a pool of buffers with capacity size.
func NewBytePool(size int) *BytePool {
	b := &BytePool{size: size}
	b.pool.New = func() any {
		b.allocs.Add(1)
		buf := make([]byte, 0, size)
		return &buf
	}
	return b
}

// Size returns the capacity of pooled buffers.
func (b *BytePool) Size() int { return b.size }

// Get returns an empty buffer with capacity Size().
func (b *BytePool) Get() []byte {
	b.gets.Add(1)
	return (*b.pool.Get().(*[]byte))[:0]
}

// Put returns buf to the pool. Buffers of a foreign capacity are dropped.
func (b *BytePool) Put(buf []byte) {
	if buf == nil {
		return
	}
	b.puts.Add(1)
	if cap(buf) != b.size {
		b.discarded.Add(1)
		return
	}
	buf = buf[:0]
	b.pool.Put(&buf)
}

// Stats returns the current counters.
func (b *BytePool) Stats() Stats {
	gets, puts := b.gets.Load(), b.puts.Load()
	return Stats{
		Size:      b.size,
		Gets:      gets,
		Puts:      puts,
		Allocs:    b.allocs.Load(),
		InUse:     gets - puts,
		Discarded: b.discarded.Load(),
	}
}
