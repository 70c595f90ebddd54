//go:build !windows

package pfio

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func init() {
	currentBackend = posixBackend{}
}

// posixBackend realizes the backend contract on POSIX systems using
// golang.org/x/sys/unix, following the same typed-wrapper style
// opencoff-go-mmap, absfs-memmapfs, and Giulio2002-gdbx use for mmap
// plumbing.
type posixBackend struct{}

func (posixBackend) openFile(path string, opt OpenOption, perm os.FileMode) (*os.File, error) {
	flag := os.O_RDONLY
	if !opt.Has(ReadOnly) {
		flag = os.O_RDWR
	}
	if opt.Has(Create) {
		flag |= os.O_CREATE
	}
	if opt.Has(SyncIO) {
		flag |= os.O_SYNC
	}
	if opt.Has(DirectIO) {
		flag |= unix.O_DIRECT
	}

	openPath := path
	if opt.Has(NonDurable) {
		// O_TMPFILE creates an unnamed inode within the target
		// directory's filesystem; it never gets a directory entry, so
		// pointing path at a tmpfs mount makes this behave like shared
		// memory - contents never reach durable storage and vanish the
		// moment the last descriptor closes.
		flag = flag&^os.O_CREATE | unix.O_TMPFILE
		openPath = filepath.Dir(path)
	}

	f, err := os.OpenFile(openPath, flag, perm)
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
	if opt.Has(RandomAccess) {
		_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
	}
	return f, nil
}

func (posixBackend) closeFile(f *os.File) error {
	return f.Close()
}

func (posixBackend) length(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (posixBackend) setLength(f *os.File, length int64) error {
	return f.Truncate(length)
}

func (posixBackend) positionalRead(f *os.File, buf []byte, offset int64) (int, error) {
	n, err := f.ReadAt(buf, offset)
	if err == io.EOF && n > 0 {
		return n, io.EOF
	}
	return n, err
}

func (posixBackend) positionalWrite(f *os.File, buf []byte, offset int64) (int, error) {
	return f.WriteAt(buf, offset)
}

func (posixBackend) openMapping(f *os.File, offset int64, size uintptr, mode Mode) (*Mapping, error) {
	return newMapping(f.Fd(), offset, size, mode, 0)
}

func (posixBackend) sync(f *os.File, metadata bool) error {
	if metadata {
		return f.Sync()
	}
	return unix.Fdatasync(int(f.Fd()))
}

func (posixBackend) syncDir(path string) error {
	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

func (posixBackend) preallocate(f *os.File, offset, length int64) (preallocResult, error) {
	err := unix.Fallocate(int(f.Fd()), 0, offset, length)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EOPNOTSUPP {
			return preallocUnsupported, nil
		}
		return preallocUnsupported, err
	}
	return preallocFast, nil
}

func (posixBackend) hint(f *os.File, kind cacheHint, offset, length int64) error {
	var advice int
	switch kind {
	case hintWillNeed:
		advice = unix.FADV_WILLNEED
	case hintRandom:
		advice = unix.FADV_RANDOM
	case hintDontNeed:
		advice = unix.FADV_DONTNEED
	default:
		return nil
	}
	return unix.Fadvise(int(f.Fd()), offset, length, advice)
}
