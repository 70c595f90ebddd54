package pagearray

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/alexeymaximov/go-pfio"
)

// Mapped is a fully-mapped fixed-capacity page array variant. The
// entire backing region - file or anonymous - is mapped
// once at construction; reads and writes memcpy directly against
// mappingPtr + index*pageSize via the underlying pfio.Mapping, with no
// positional-I/O fallback and no mapping table to grow.
type Mapped struct {
	mapping    *pfio.Mapping
	file       *os.File
	pageSize   int64
	pageCount  int64 // fixed capacity, in pages
	fileBacked bool
	empty      atomic.Bool
	closed     atomic.Bool
}

// NewMappedFile creates or opens a fixed-capacity, file-backed page
// array at path with capacity pageCount pages of pageSize bytes each.
func NewMappedFile(path string, perm os.FileMode, pageSize, pageCount int64) (*Mapped, error) {
	if pageSize < 1 {
		return nil, &ErrorInvalidPageSize{PageSize: pageSize}
	}
	f, m, created, err := pfio.OpenMappedFile(path, perm, uintptr(pageSize*pageCount))
	if err != nil {
		return nil, err
	}
	arr := &Mapped{mapping: m, file: f, pageSize: pageSize, pageCount: pageCount, fileBacked: true}
	arr.empty.Store(created)
	return arr, nil
}

// NewMappedAnonymous creates a fixed-capacity page array backed by
// anonymous, not-file-backed memory. It is marked empty until the first explicit write or sync.
func NewMappedAnonymous(pageSize, pageCount int64) (*Mapped, error) {
	if pageSize < 1 {
		return nil, &ErrorInvalidPageSize{PageSize: pageSize}
	}
	m, err := pfio.MapAnonymous(uintptr(pageSize * pageCount))
	if err != nil {
		return nil, err
	}
	arr := &Mapped{mapping: m, pageSize: pageSize, pageCount: pageCount}
	arr.empty.Store(true)
	return arr, nil
}

func (a *Mapped) PageSize() int64 { return a.pageSize }

func (a *Mapped) PageCount() (int64, error) {
	if a.closed.Load() {
		return 0, &pfio.ErrorClosed{}
	}
	return a.pageCount, nil
}

func (a *Mapped) PageCountLimit() int64 { return a.pageCount }

// TruncatePageCount is unsupported: a Mapped array's capacity is fixed
// at construction. Unlike Base/Joined/Striped it cannot resize without
// remapping the whole region.
func (a *Mapped) TruncatePageCount(n int64) error {
	if n == a.pageCount {
		return nil
	}
	return &pfio.ErrorUnsupported{Operation: "truncatePageCount on MappedPageArray"}
}

func (a *Mapped) ExpandPageCount(n int64) error {
	if n == a.pageCount {
		return nil
	}
	return &pfio.ErrorUnsupported{Operation: "expandPageCount on MappedPageArray"}
}

func (a *Mapped) checkIndex(i int64) error {
	if i < 0 {
		return &ErrorInvalidIndex{Index: i}
	}
	return nil
}

func (a *Mapped) ReadPage(i int64, dst []byte, off int) error {
	if a.closed.Load() {
		return &pfio.ErrorClosed{}
	}
	if err := a.checkIndex(i); err != nil {
		return err
	}
	_, err := a.mapping.ReadAt(dst, i*a.pageSize+int64(off))
	return err
}

// WritePage fails with ErrorFull when i is beyond the array's fixed
// capacity.
func (a *Mapped) WritePage(i int64, src []byte, off int) error {
	if a.closed.Load() {
		return &pfio.ErrorClosed{}
	}
	if err := a.checkIndex(i); err != nil {
		return err
	}
	if i >= a.pageCount {
		return &pfio.ErrorFull{Index: i}
	}
	if _, err := a.mapping.WriteAt(src, i*a.pageSize+int64(off)); err != nil {
		return err
	}
	a.empty.Store(false)
	return nil
}

func (a *Mapped) EvictPage(i int64, buf []byte) error {
	return a.WritePage(i, buf, 0)
}

func (a *Mapped) Flush(i int64) error {
	// Pages are always live in the mapping; nothing buffered to flush
	// beyond what Sync already covers.
	return nil
}

// DirectPageAddress returns a pointer to page i's memory, valid only
// while this array remains open.
func (a *Mapped) DirectPageAddress(i int64) (uintptr, error) {
	if a.closed.Load() {
		return 0, &pfio.ErrorClosed{}
	}
	if err := a.checkIndex(i); err != nil {
		return 0, err
	}
	base, err := a.mapping.DirectAddress()
	if err != nil {
		return 0, err
	}
	return base + uintptr(i*a.pageSize), nil
}

func (a *Mapped) CopyPage(src, dst int64) error {
	buf := make([]byte, a.pageSize)
	if err := a.ReadPage(src, buf, 0); err != nil {
		return err
	}
	return a.WritePage(dst, buf, 0)
}

// CopyPageFromAddress memcpy's pageSize bytes from a raw address
// (obtained from another array's DirectPageAddress) into page dst.
// Supported here because Mapped is always fully mapped, so its own
// memory is directly addressable on both ends of the copy.
func (a *Mapped) CopyPageFromAddress(src uintptr, dst int64) error {
	if a.closed.Load() {
		return &pfio.ErrorClosed{}
	}
	if err := a.checkIndex(dst); err != nil {
		return err
	}
	if dst >= a.pageCount {
		return &pfio.ErrorFull{Index: dst}
	}
	srcBuf := unsafe.Slice((*byte)(unsafe.Pointer(src)), a.pageSize)
	if _, err := a.mapping.WriteAt(srcBuf, dst*a.pageSize); err != nil {
		return err
	}
	a.empty.Store(false)
	return nil
}

// Sync calls msync over pageCount*pageSize; when file-backed, it also
// fsyncs the descriptor for metadata durability.
func (a *Mapped) Sync(metadata bool) error {
	if a.closed.Load() {
		return &pfio.ErrorClosed{}
	}
	if err := a.mapping.Sync(); err != nil {
		return err
	}
	a.empty.Store(false)
	if a.fileBacked && metadata {
		return a.file.Sync()
	}
	return nil
}

// Close atomically marks the array closed (guarding against
// use-after-close from a racing reader) then unmaps.
func (a *Mapped) Close(cause error) error {
	if !a.closed.CompareAndSwap(false, true) {
		return &pfio.ErrorClosed{Cause: cause}
	}
	err := a.mapping.Close()
	if a.fileBacked {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *Mapped) IsClosed() bool  { return a.closed.Load() }
func (a *Mapped) IsReadOnly() bool { return !a.mapping.Writable() }
func (a *Mapped) IsEmpty() bool   { return a.empty.Load() }
