// Package mempool provides sized pools for the per-event mask and label buffers
// used by region growing and boundary tracing.
package mempool

import (
	"sync"
)

var (
	boolPools sync.Map // key: size class (int), value: *sync.Pool
	intPools  sync.Map // key: size class (int), value: *sync.Pool
)

// maxPooled is the largest buffer kept in a pool. Larger requests are
// allocated directly so the set of size classes stays bounded.
const maxPooled = 1 << 24

// sizeClass rounds n up to the next power of two, at least 1024.
func sizeClass(n int) int {
	cls := 1024
	for cls < n {
		cls <<= 1
	}
	return cls
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// get returns a zeroed buffer of length n. Pooled buffers are reused across
// recomputes, so stale contents must never leak into a new mask.
func get[T any](pools *sync.Map, n int) []T {
	if n < 0 {
		n = 0
	}
	if n > maxPooled {
		return make([]T, n)
	}
	cls := sizeClass(n)
	p := poolFor[T](pools, cls)
	if p == nil {
		return make([]T, n)
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil || cap(buf) > maxPooled {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// foreign slice that did not come from a pool bucket
		return
	}
	p := poolFor[T](pools, cls)
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetBool retrieves a zeroed []bool buffer of n elements from the pool.
// The caller must return it via PutBool when done.
func GetBool(n int) []bool { return get[bool](&boolPools, n) }

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) { put(&boolPools, buf) }

// GetInt retrieves a zeroed []int buffer of n elements from the pool.
// The caller must return it via PutInt when done.
func GetInt(n int) []int { return get[int](&intPools, n) }

// PutInt returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt(buf []int) { put(&intPools, buf) }
