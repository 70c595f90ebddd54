//go:build windows

package pfio

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const maxInt = int(^uint(0) >> 1)

// Mapping is a mapping of part of a file into process memory, backed
// by CreateFileMapping/MapViewOfFileEx via golang.org/x/sys/windows.
// Unlike POSIX, Windows requires a separate file-mapping handle in
// addition to the file handle, and has no direct equivalent of msync
// for metadata - FlushFileBuffers on the underlying handle is used for
// that (see platform_windows.go).
type Mapping struct {
	internal
	hFile          windows.Handle
	hMapping       windows.Handle
	alignedAddress uintptr
	alignedLength  uintptr
	locked         bool
}

func newMapping(fd uintptr, offset int64, length uintptr, mode Mode, flags Flag) (*Mapping, error) {
	if offset < 0 {
		return nil, &ErrorInvalidOffset{Offset: offset}
	}
	if length > uintptr(maxInt) {
		return nil, &ErrorInvalidLength{Length: length}
	}

	m := &Mapping{hFile: windows.Handle(fd)}
	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	switch mode {
	case ModeReadOnly:
	case ModeReadWrite:
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
		m.writable = true
	case ModeWriteCopy:
		protect = windows.PAGE_WRITECOPY
		access = windows.FILE_MAP_COPY
		m.writable = true
	default:
		return nil, &ErrorInvalidMode{Mode: mode}
	}
	if flags&FlagExecutable != 0 {
		switch protect {
		case windows.PAGE_READONLY:
			protect = windows.PAGE_EXECUTE_READ
		case windows.PAGE_READWRITE:
			protect = windows.PAGE_EXECUTE_READWRITE
		case windows.PAGE_WRITECOPY:
			protect = windows.PAGE_EXECUTE_WRITECOPY
		}
		access |= windows.FILE_MAP_EXECUTE
		m.executable = true
	}

	pageSize := int64(os.Getpagesize())
	outerOffset := offset / pageSize
	innerOffset := offset % pageSize
	m.alignedLength = uintptr(innerOffset) + length

	highOrderOffset := uint32((outerOffset * pageSize) >> 32)
	lowOrderOffset := uint32((outerOffset * pageSize) & 0xffffffff)
	highOrderSize := uint32(m.alignedLength >> 32)
	lowOrderSize := uint32(m.alignedLength & 0xffffffff)

	hMapping, err := windows.CreateFileMapping(m.hFile, nil, protect, highOrderSize, lowOrderSize, nil)
	if err != nil {
		return nil, &ErrorMapping{Reason: "CreateFileMapping", Cause: err}
	}
	m.hMapping = hMapping

	addr, err := windows.MapViewOfFile(hMapping, access, highOrderOffset, lowOrderOffset, m.alignedLength)
	if err != nil {
		windows.CloseHandle(hMapping)
		return nil, &ErrorMapping{Reason: "MapViewOfFile", Cause: err}
	}
	m.alignedAddress = addr
	m.address = m.alignedAddress + uintptr(innerOffset)

	var s []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&s))
	hdr.data = m.address
	hdr.len = int(length)
	hdr.cap = int(length)
	m.memory = s

	runtime.SetFinalizer(m, (*Mapping).Close)
	return m, nil
}

// newAnonymousMapping reserves and commits size bytes via VirtualAlloc,
// for MappedPageArray instances created without a backing file.
func newAnonymousMapping(size uintptr) (*Mapping, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, &ErrorMapping{Reason: "VirtualAlloc", Cause: err}
	}
	m := &Mapping{writable: true}
	m.alignedAddress = addr
	m.alignedLength = size
	m.address = addr
	var s []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&s))
	hdr.data = addr
	hdr.len = int(size)
	hdr.cap = int(size)
	m.memory = s
	runtime.SetFinalizer(m, (*Mapping).Close)
	return m, nil
}

type sliceHeader struct {
	data uintptr
	len  int
	cap  int
}

// Lock pins the mapped pages in the working set via VirtualLock.
func (m *Mapping) Lock() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if m.locked {
		return &ErrorLocked{}
	}
	if err := windows.VirtualLock(m.alignedAddress, m.alignedLength); err != nil {
		return os.NewSyscallError("VirtualLock", err)
	}
	m.locked = true
	return nil
}

// Unlock releases pages previously pinned with Lock.
func (m *Mapping) Unlock() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if !m.locked {
		return &ErrorUnlocked{}
	}
	if err := windows.VirtualUnlock(m.alignedAddress, m.alignedLength); err != nil {
		return os.NewSyscallError("VirtualUnlock", err)
	}
	m.locked = false
	return nil
}

// Sync flushes this mapping's view to the underlying file via
// FlushViewOfFile. Anonymous mappings (no hMapping) have nothing to
// flush to and return nil. Callers that need metadata durability must
// also call FlushFileBuffers on the file handle - the platform
// back-end's Sync does this after flushing all mappings (see
// platform_windows.go).
func (m *Mapping) Sync() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if !m.writable {
		return &ErrorIllegalOperation{Operation: "sync"}
	}
	if m.hMapping == 0 {
		return nil
	}
	if err := windows.FlushViewOfFile(m.alignedAddress, m.alignedLength); err != nil {
		return os.NewSyscallError("FlushViewOfFile", err)
	}
	return nil
}

// Close unmaps the view and closes the file-mapping handle. The file
// handle itself belongs to FileIO and is not touched here. An
// anonymous mapping (hMapping == 0, see newAnonymousMapping) is
// released with VirtualFree instead. Implements io.Closer; idempotent.
func (m *Mapping) Close() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if m.writable {
		if err := m.Sync(); err != nil {
			return err
		}
	}
	if m.locked {
		if err := m.Unlock(); err != nil {
			return err
		}
	}
	if m.hMapping == 0 {
		if err := windows.VirtualFree(m.alignedAddress, 0, windows.MEM_RELEASE); err != nil {
			return os.NewSyscallError("VirtualFree", err)
		}
		*m = Mapping{}
		runtime.SetFinalizer(m, nil)
		return nil
	}
	if err := windows.UnmapViewOfFile(m.alignedAddress); err != nil {
		return os.NewSyscallError("UnmapViewOfFile", err)
	}
	if err := windows.CloseHandle(m.hMapping); err != nil {
		return os.NewSyscallError("CloseHandle", err)
	}
	*m = Mapping{}
	runtime.SetFinalizer(m, nil)
	return nil
}

func (m *Mapping) directAddress() uintptr {
	return m.address
}
