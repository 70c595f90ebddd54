// Package pagearray implements the page-index-addressed composition
// layer on top of pfio.FileIO: the base PageArray translation, the
// fully-mapped fixed-capacity variant, and the joined (sequential) and
// striped (round-robin) composite arrays.
package pagearray

import (
	"github.com/alexeymaximov/go-pfio"
)

// PageArray translates page indices to byte offsets over some backing
// storage. Implementations: *Base (a thin pfio.FileIO wrapper),
// *Mapped, *Joined, *Striped.
type PageArray interface {
	// PageSize returns the fixed page size in bytes.
	PageSize() int64

	// PageCount returns the current number of whole pages.
	PageCount() (int64, error)

	// PageCountLimit returns the maximum page count this array can
	// ever reach, or math.MaxInt64 if unbounded.
	PageCountLimit() int64

	// TruncatePageCount shrinks the array to n pages.
	TruncatePageCount(n int64) error

	// ExpandPageCount grows the array to n pages.
	ExpandPageCount(n int64) error

	// ReadPage reads len bytes at off within page i into dst.
	ReadPage(i int64, dst []byte, off int) error

	// WritePage writes src to page i starting at off.
	WritePage(i int64, src []byte, off int) error

	// EvictPage writes buf back for page i. The default behavior is a
	// plain write; arrays that internally manage a buffer may
	// substitute a different replacement strategy.
	EvictPage(i int64, buf []byte) error

	// Flush writes back any buffered state for page i without
	// requiring a full Sync.
	Flush(i int64) error

	// DirectPageAddress returns a raw pointer to page i's memory.
	// Supported only when the array is fully mapped; otherwise returns
	// *pfio.ErrorUnsupported.
	DirectPageAddress(i int64) (uintptr, error)

	// CopyPage copies page src to page dst within this array.
	CopyPage(src, dst int64) error

	// CopyPageFromAddress copies pageSize bytes from a raw address
	// (obtained from another array's DirectPageAddress) into page dst.
	CopyPageFromAddress(src uintptr, dst int64) error

	// Sync flushes the array to durable storage.
	Sync(metadata bool) error

	// Close closes the array, recording cause if non-nil.
	Close(cause error) error

	IsClosed() bool
	IsReadOnly() bool
	IsEmpty() bool
}

// Base is the PageArray base implementation: a pfio.FileIO wrapped with
// page-index-to-byte-offset translation. Partial trailing bytes never
// constitute a whole page - PageCount always rounds down.
type Base struct {
	fio      *pfio.FileIO
	pageSize int64
	readOnly bool
}

// NewBase wraps fio as a page array with the given fixed page size.
func NewBase(fio *pfio.FileIO, pageSize int64, readOnly bool) (*Base, error) {
	if pageSize < 1 {
		return nil, &ErrorInvalidPageSize{PageSize: pageSize}
	}
	return &Base{fio: fio, pageSize: pageSize, readOnly: readOnly}, nil
}

func (b *Base) PageSize() int64 { return b.pageSize }

func (b *Base) PageCount() (int64, error) {
	length, err := b.fio.Length()
	if err != nil {
		return 0, err
	}
	return length / b.pageSize, nil
}

func (b *Base) PageCountLimit() int64 {
	return maxInt64 / b.pageSize
}

func (b *Base) TruncatePageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	return b.fio.TruncateLength(n * b.pageSize)
}

func (b *Base) ExpandPageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	return b.fio.ExpandLength(n*b.pageSize, pfio.PreallocateOptional)
}

func (b *Base) checkIndex(i int64) error {
	if i < 0 {
		return &ErrorInvalidIndex{Index: i}
	}
	return nil
}

func (b *Base) ReadPage(i int64, dst []byte, off int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	_, err := b.fio.Read(i*b.pageSize+int64(off), dst)
	return err
}

func (b *Base) WritePage(i int64, src []byte, off int) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if b.readOnly {
		return &ErrorReadOnly{}
	}
	_, err := b.fio.Write(i*b.pageSize+int64(off), src)
	return err
}

func (b *Base) EvictPage(i int64, buf []byte) error {
	return b.WritePage(i, buf, 0)
}

func (b *Base) Flush(i int64) error {
	// The FileIO-backed base has no page-local buffering of its own;
	// every WritePage already reaches the mapping table or positional
	// I/O directly, so Flush is a no-op here. Mapped's Flush is a no-op
	// as well.
	return nil
}

func (b *Base) DirectPageAddress(i int64) (uintptr, error) {
	return 0, &pfio.ErrorUnsupported{Operation: "directPageAddress"}
}

func (b *Base) CopyPage(src, dst int64) error {
	buf := make([]byte, b.pageSize)
	if err := b.ReadPage(src, buf, 0); err != nil {
		return err
	}
	return b.WritePage(dst, buf, 0)
}

func (b *Base) CopyPageFromAddress(src uintptr, dst int64) error {
	return &pfio.ErrorUnsupported{Operation: "copyPageFromAddress"}
}

// Sync triggers a lazy remap before delegating, so length changes made
// by another process are recognized at sync boundaries.
func (b *Base) Sync(metadata bool) error {
	if err := b.fio.Remap(); err != nil {
		return err
	}
	return b.fio.Sync(metadata)
}

func (b *Base) Close(cause error) error {
	return b.fio.Close(cause)
}

func (b *Base) IsClosed() bool { return b.fio.Closed() }

func (b *Base) IsReadOnly() bool { return b.readOnly }

func (b *Base) IsEmpty() bool {
	n, err := b.PageCount()
	return err == nil && n == 0
}

const maxInt64 = 1<<63 - 1
