package pfio

import (
	"os"
	"sync"
	"unsafe"
)

// handlePool is a bounded LIFO of open file handles: each positional
// I/O call checks out one handle for its duration and returns it, and
// a checkout blocks while
// the pool is empty. A sync.Pool cannot express the blocking-when-empty
// requirement, so this is a buffered channel used as a bounded stack
// stand-in, following the general Go idiom for a blocking bounded
// resource pool.
type handlePool struct {
	path string
	opt  OpenOption
	perm os.FileMode

	slots chan *os.File
	mu    sync.Mutex
	all   []*os.File
}

func newHandlePool(path string, opt OpenOption, perm os.FileMode, size int) (*handlePool, error) {
	if size < 1 {
		size = 1
	}
	p := &handlePool{
		path:  path,
		opt:   opt,
		perm:  perm,
		slots: make(chan *os.File, size),
	}
	for i := 0; i < size; i++ {
		f, err := currentBackend.openFile(path, opt, perm)
		if err != nil {
			p.closeAll()
			return nil, err
		}
		p.all = append(p.all, f)
		p.slots <- f
	}
	return p, nil
}

// checkout blocks until a handle is available.
func (p *handlePool) checkout() *os.File {
	return <-p.slots
}

// checkin returns a handle previously obtained from checkout.
func (p *handlePool) checkin(f *os.File) {
	p.slots <- f
}

// reopen replaces every pooled handle with a freshly opened one. Used
// by FileIO.setLength after a shrink-while-mapped unmap.
func (p *handlePool) reopen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	drained := make([]*os.File, 0, len(p.all))
	for i := 0; i < len(p.all); i++ {
		drained = append(drained, p.checkout())
	}
	var firstErr error
	fresh := make([]*os.File, 0, len(p.all))
	for _, f := range drained {
		f.Close()
		nf, err := currentBackend.openFile(p.path, p.opt, p.perm)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if nf != nil {
			fresh = append(fresh, nf)
		}
	}
	p.all = fresh
	for _, f := range fresh {
		p.slots <- f
	}
	return firstErr
}

// closeAll drains and closes every pooled handle, aggregating and
// returning the first error encountered, matching the same
// close-the-rest-and-surface-the-first shape used when tearing down a
// mapping table.
func (p *handlePool) closeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for i := 0; i < len(p.all); i++ {
		f := p.checkout()
		if err := currentBackend.closeFile(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.all = nil
	return firstErr
}

// bufferPool is the per-FileIO pool of page-aligned buffers that
// FileIO.access copies through for DirectIO positional reads and
// writes. Entries grow
// monotonically to the largest requested size and are dropped on
// clear, never reused across a size increase.
type bufferPool struct {
	pageSize int
	mu       sync.Mutex
	largest  int
	pool     sync.Pool
}

func newBufferPool(pageSize int) *bufferPool {
	if pageSize <= 0 {
		pageSize = 4096
	}
	return &bufferPool{pageSize: pageSize}
}

// get returns an aligned buffer of at least n bytes.
func (b *bufferPool) get(n int) []byte {
	b.mu.Lock()
	if n > b.largest {
		b.largest = n
	}
	size := b.largest
	b.mu.Unlock()

	if v := b.pool.Get(); v != nil {
		buf := v.([]byte)
		if len(buf) >= n {
			return buf[:n]
		}
	}
	// Over-allocate by one page so the aligned sub-slice always has
	// room for the requested length regardless of starting alignment.
	raw := make([]byte, size+b.pageSize)
	aligned := alignSlice(raw, b.pageSize)
	return aligned[:n]
}

// put returns a buffer to the pool for reuse.
func (b *bufferPool) put(buf []byte) {
	b.pool.Put(buf)
}

// clear drops every pooled buffer; called from FileIO.close.
func (b *bufferPool) clear() {
	b.pool = sync.Pool{}
}

func alignSlice(buf []byte, align int) []byte {
	if len(buf) == 0 {
		return buf
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pad := (align - int(addr%uintptr(align))) % align
	return buf[pad:]
}
