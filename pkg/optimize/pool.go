package optimize

import "sync"

// BytePool recycles fixed-capacity byte buffers. Long-lived snapshot
// streams read in a tight loop; pooling keeps them from churning the GC.
type BytePool struct {
	pool sync.Pool
	size int
}

func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Buffers that were resized are dropped.
func (p *BytePool) Put(b []byte) {
	if cap(b) == p.size {
		p.pool.Put(b[:p.size])
	}
}
