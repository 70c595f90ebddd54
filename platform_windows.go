//go:build windows

package pfio

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

func init() {
	currentBackend = windowsBackend{}
}

// windowsBackend realizes the backend contract on Windows. Windows has
// no data-only descriptor flush: FileIO.Sync flushes every mapping view
// first, then sync calls FlushFileBuffers on the descriptor whether or
// not metadata is requested.
type windowsBackend struct{}

func (windowsBackend) openFile(path string, opt OpenOption, perm os.FileMode) (*os.File, error) {
	flag := os.O_RDONLY
	if !opt.Has(ReadOnly) {
		flag = os.O_RDWR
	}
	if opt.Has(Create) {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrorNotFound{Path: path}
		}
		if os.IsPermission(err) {
			return nil, &ErrorPermission{Path: path, Op: "open"}
		}
		return nil, err
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		f.Close()
		return nil, &ErrorNotFound{Path: path}
	}
	return f, nil
}

func (windowsBackend) closeFile(f *os.File) error {
	return f.Close()
}

func (windowsBackend) length(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (windowsBackend) setLength(f *os.File, length int64) error {
	// Truncating an open-mapped file is impossible on Windows; FileIO
	// guarantees unmap happens first on shrink (see fileio.go).
	return f.Truncate(length)
}

func (windowsBackend) positionalRead(f *os.File, buf []byte, offset int64) (int, error) {
	return f.ReadAt(buf, offset)
}

func (windowsBackend) positionalWrite(f *os.File, buf []byte, offset int64) (int, error) {
	return f.WriteAt(buf, offset)
}

func (windowsBackend) openMapping(f *os.File, offset int64, size uintptr, mode Mode) (*Mapping, error) {
	return newMapping(uintptr(f.Fd()), offset, size, mode, 0)
}

func (windowsBackend) sync(f *os.File, metadata bool) error {
	return windows.FlushFileBuffers(windows.Handle(f.Fd()))
}

func (windowsBackend) syncDir(path string) error {
	// Windows has no directory-fsync equivalent; a best-effort no-op,
	// matching the contract's "best-effort directory sync" license.
	_ = filepath.Dir(path)
	return nil
}

func (windowsBackend) preallocate(f *os.File, offset, length int64) (preallocResult, error) {
	// The fast preallocate path is disabled unconditionally on Windows
	// (see DESIGN.md): it has been observed ineffective on certain
	// hardware, so this back-end always falls through to the zero-fill
	// fallback.
	return preallocUnsupported, nil
}

func (windowsBackend) hint(f *os.File, kind cacheHint, offset, length int64) error {
	// No portable equivalent of posix_fadvise on Windows; ignored.
	return nil
}
