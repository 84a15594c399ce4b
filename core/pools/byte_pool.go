package pools

import (
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultReadBufferSizes are the size classes used when NewBytePool is
// given none.
var DefaultReadBufferSizes = []int{2048, 8192, 65536}

// BytePool recycles the buffers a connection reads its request into. A
// buffer is sized to the request limit up front so the reader never grows
// it; hitting the end of the buffer is how the limit is enforced.
type BytePool struct {
	classes []readClass

	gets      atomic.Uint64
	puts      atomic.Uint64
	allocated atomic.Uint64
	oversized atomic.Uint64
	dropped   atomic.Uint64
}

type readClass struct {
	size int
	free sync.Pool
}

// NewBytePool creates a pool with one size class per distinct positive
// size. The server passes its request limit so every read buffer comes
// from a single class.
func NewBytePool(sizes ...int) *BytePool {
	if len(sizes) == 0 {
		sizes = DefaultReadBufferSizes
	}
	sorted := slices.Clone(sizes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	sorted = slices.DeleteFunc(sorted, func(n int) bool { return n <= 0 })

	bp := &BytePool{classes: make([]readClass, len(sorted))}
	for i, size := range sorted {
		size := size
		c := &bp.classes[i]
		c.size = size
		c.free.New = func() any {
			bp.allocated.Add(1)
			buf := make([]byte, size)
			return &buf
		}
	}
	return bp
}

// Get returns a buffer of length limit. A limit above every class is
// served by a one-off allocation that Put will not keep.
func (bp *BytePool) Get(limit int) []byte {
	bp.gets.Add(1)
	if c := bp.classFor(limit); c != nil {
		return (*c.free.Get().(*[]byte))[:limit]
	}
	bp.oversized.Add(1)
	return make([]byte, limit)
}

// Put recycles buf once the request read from it has been parsed. Buffers
// whose capacity matches no class are dropped.
func (bp *BytePool) Put(buf []byte) {
	c := bp.classFor(cap(buf))
	if c == nil || c.size != cap(buf) {
		bp.dropped.Add(1)
		return
	}
	buf = buf[:c.size]
	c.free.Put(&buf)
	bp.puts.Add(1)
}

// classFor is the smallest class holding n bytes, or nil
func (bp *BytePool) classFor(n int) *readClass {
	i, _ := slices.BinarySearchFunc(bp.classes, n, func(c readClass, n int) int {
		return c.size - n
	})
	if i == len(bp.classes) {
		return nil
	}
	return &bp.classes[i]
}

// Sizes lists the size classes in ascending order
func (bp *BytePool) Sizes() []int {
	sizes := make([]int, len(bp.classes))
	for i := range bp.classes {
		sizes[i] = bp.classes[i].size
	}
	return sizes
}

// BytePoolStats counts read buffer traffic. Allocated below Gets means
// buffers are being reused.
type BytePoolStats struct {
	Gets      uint64 `json:"gets"`
	Puts      uint64 `json:"puts"`
	Allocated uint64 `json:"allocated"`
	Oversized uint64 `json:"oversized"`
	Dropped   uint64 `json:"dropped"`
}

func (bp *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Gets:      bp.gets.Load(),
		Puts:      bp.puts.Load(),
		Allocated: bp.allocated.Load(),
		Oversized: bp.oversized.Load(),
		Dropped:   bp.dropped.Load(),
	}
}
