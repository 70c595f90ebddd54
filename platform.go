package pfio

import "os"

// cacheHint names a page-cache hint a back-end may apply, or ignore if
// unsupported.
type cacheHint int

const (
	hintWillNeed cacheHint = iota
	hintRandom
	hintDontNeed
)

// preallocResult reports whether a back-end's fast preallocation path
// was used. When it was not (preallocUnsupported), FileIO falls back to
// the non-destructive zero-fill strategy in prealloc.go.
type preallocResult int

const (
	preallocUnsupported preallocResult = iota
	preallocFast
)

// backend is the abstract hook set a platform realizes for FileIO.
// Two concrete realizations exist, selected by build tag:
// platform_posix.go and platform_windows.go.
type backend interface {
	// openFile opens or creates path according to opt, returning a
	// descriptor FileIO owns exclusively until closed.
	openFile(path string, opt OpenOption, perm os.FileMode) (*os.File, error)

	// closeFile releases a descriptor obtained from openFile.
	closeFile(f *os.File) error

	// length returns the current file length in bytes.
	length(f *os.File) (int64, error)

	// setLength resizes the file, truncating or extending it.
	setLength(f *os.File, length int64) error

	// positionalRead reads len(buf) bytes at offset without moving any
	// shared file cursor.
	positionalRead(f *os.File, buf []byte, offset int64) (int, error)

	// positionalWrite writes len(buf) bytes at offset without moving
	// any shared file cursor.
	positionalWrite(f *os.File, buf []byte, offset int64) (int, error)

	// openMapping maps size bytes of f starting at offset.
	openMapping(f *os.File, offset int64, size uintptr, mode Mode) (*Mapping, error)

	// sync flushes f's data, and its metadata too when metadata is true.
	// On back-ends with only a single "full sync" primitive, that
	// primitive is used for both.
	sync(f *os.File, metadata bool) error

	// syncDir best-effort syncs the parent directory of path, used
	// after creating a new file so the directory entry itself survives
	// a crash. Errors are intentionally not surfaced by callers of this
	// method beyond logging.
	syncDir(path string) error

	// preallocate best-effort preallocates [offset, offset+length) of f.
	// Returns preallocUnsupported when the platform has no fast extent
	// API, triggering FileIO's zero-fill fallback.
	preallocate(f *os.File, offset, length int64) (preallocResult, error)

	// hint applies a best-effort page-cache hint over [offset, offset+length)
	// of f, or is a no-op where unsupported.
	hint(f *os.File, kind cacheHint, offset, length int64) error
}

// currentBackend is assigned by platform_posix.go or platform_windows.go
// in an init func, selected at compile time by build tag.
var currentBackend backend
