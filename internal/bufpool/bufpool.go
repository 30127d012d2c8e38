package bufpool

import "sync"

// Pool hands out byte buffers of one fixed size. Receive and file-streaming
// buffers are requested once per connection or response, so recycling them
// keeps a busy server from churning the allocator.
type Pool struct {
	size int
	pool sync.Pool
}

// New returns a pool of size-byte buffers.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a buffer of the pool's full size.
func (p *Pool) Get() []byte {
	buf := p.pool.Get().(*[]byte)
	return (*buf)[:p.size]
}

// Put returns a buffer to the pool. Buffers of any other capacity are left
// to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	full := buf[:p.size]
	p.pool.Put(&full)
}
