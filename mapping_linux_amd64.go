//go:build linux

package pfio

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

const maxInt = int(^uint(0) >> 1)

// Mapping is a mapping of part of a file into process memory, backed
// by the POSIX mmap family via golang.org/x/sys/unix. One FileIO holds
// many of these in its mapping table.
type Mapping struct {
	internal
	alignedAddress uintptr
	alignedLength  uintptr
	locked         bool
}

// newMapping creates a new mapping of fd, starting at offset and
// spanning length bytes, into memory. The actual offset and length
// mapped may differ slightly from those requested because mmap
// requires page-size alignment; the returned Mapping's Address/Memory
// still reflect exactly the requested range.
func newMapping(fd uintptr, offset int64, length uintptr, mode Mode, flags Flag) (*Mapping, error) {
	if offset < 0 {
		return nil, &ErrorInvalidOffset{Offset: offset}
	}
	if length > uintptr(maxInt) {
		return nil, &ErrorInvalidLength{Length: length}
	}

	m := &Mapping{}
	prot := unix.PROT_READ
	mmapFlags := unix.MAP_SHARED
	switch mode {
	case ModeReadOnly:
	case ModeReadWrite:
		prot |= unix.PROT_WRITE
		m.writable = true
	case ModeWriteCopy:
		prot |= unix.PROT_WRITE
		m.writable = true
		mmapFlags = unix.MAP_PRIVATE
	default:
		return nil, &ErrorInvalidMode{Mode: mode}
	}
	if flags&FlagExecutable != 0 {
		prot |= unix.PROT_EXEC
		m.executable = true
	}

	pageSize := int64(os.Getpagesize())
	outerOffset := offset / pageSize
	innerOffset := offset % pageSize
	m.alignedLength = uintptr(innerOffset) + length

	region, err := unix.Mmap(int(fd), outerOffset*pageSize, int(m.alignedLength), prot, mmapFlags)
	if err != nil {
		return nil, &ErrorMapping{Reason: "mmap", Cause: err}
	}
	m.alignedAddress = uintptr(unsafe.Pointer(&region[0]))
	m.address = m.alignedAddress + uintptr(innerOffset)
	m.memory = region[innerOffset : innerOffset+int64(length)]

	runtime.SetFinalizer(m, (*Mapping).Close)
	return m, nil
}

// newAnonymousMapping establishes a MAP_SHARED|MAP_ANONYMOUS region not
// backed by any file, for MappedPageArray instances created without a
// path.
func newAnonymousMapping(size uintptr) (*Mapping, error) {
	m := &Mapping{writable: true}
	m.alignedLength = size
	region, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &ErrorMapping{Reason: "mmap anonymous", Cause: err}
	}
	m.alignedAddress = uintptr(unsafe.Pointer(&region[0]))
	m.address = m.alignedAddress
	m.memory = region
	runtime.SetFinalizer(m, (*Mapping).Close)
	return m, nil
}

func (m *Mapping) alignedMemory() []byte {
	var s []byte
	hdr := (*sliceHeader)(unsafe.Pointer(&s))
	hdr.data = m.alignedAddress
	hdr.len = int(m.alignedLength)
	hdr.cap = int(m.alignedLength)
	return s
}

type sliceHeader struct {
	data uintptr
	len  int
	cap  int
}

// Lock locks the mapped memory pages so they are resident in RAM and
// stay resident until Unlock.
func (m *Mapping) Lock() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if m.locked {
		return &ErrorLocked{}
	}
	if err := unix.Mlock(m.alignedMemory()); err != nil {
		return os.NewSyscallError("mlock", err)
	}
	m.locked = true
	return nil
}

// Unlock unlocks the mapped memory pages.
func (m *Mapping) Unlock() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if !m.locked {
		return &ErrorUnlocked{}
	}
	if err := unix.Munlock(m.alignedMemory()); err != nil {
		return os.NewSyscallError("munlock", err)
	}
	m.locked = false
	return nil
}

// Sync flushes this mapping's dirty pages to the underlying file.
func (m *Mapping) Sync() error {
	if m.memory == nil {
		return &ErrorClosed{}
	}
	if !m.writable {
		return &ErrorIllegalOperation{Operation: "sync"}
	}
	return os.NewSyscallError("msync", unix.Msync(m.alignedMemory(), unix.MS_SYNC))
}

// Close unmaps this mapping and releases all resources. Writable
// mappings are synchronized first; locked mappings are unlocked first.
// Implementation of io.Closer. Idempotent: closing twice returns
// ErrorClosed on the second call.
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
	if err := unix.Munmap(m.alignedMemory()); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	*m = Mapping{}
	runtime.SetFinalizer(m, nil)
	return nil
}

// directAddress exposes the raw base address for callers (MappedPageArray)
// that need to hand out a direct pointer into the mapping. Valid only
// while the mapping remains open and is not remapped.
func (m *Mapping) directAddress() uintptr {
	return m.address
}
