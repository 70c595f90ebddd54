package pfio

import "os"

// MapFile maps size bytes of f starting at offset, using the current
// platform back-end. This is the entry point pagearray.Mapped uses to
// establish its single, fixed-capacity, whole-array mapping, as
// opposed to FileIO's own internal mapping table which maps in
// MappingSize-sized chunks.
func MapFile(f *os.File, offset int64, size uintptr, mode Mode) (*Mapping, error) {
	return currentBackend.openMapping(f, offset, size, mode)
}

// OpenMappedFile opens (creating if missing) path, truncates/extends
// it to size, and maps the whole file read-write. It is the
// file-backed counterpart to MapAnonymous.
func OpenMappedFile(path string, perm os.FileMode, size uintptr) (*os.File, *Mapping, bool, error) {
	created := false
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) {
		created = true
	}
	f, err := currentBackend.openFile(path, Create, perm)
	if err != nil {
		return nil, nil, false, err
	}
	if err := currentBackend.setLength(f, int64(size)); err != nil {
		f.Close()
		return nil, nil, false, err
	}
	m, err := MapFile(f, 0, size, ModeReadWrite)
	if err != nil {
		f.Close()
		return nil, nil, false, err
	}
	return f, m, created, nil
}

// MapAnonymous establishes an anonymous, not-file-backed mapping of
// size bytes, shared within this process only. Used for
// pagearray.Mapped arrays opened without a backing path. The region is
// marked empty by the caller until first write.
func MapAnonymous(size uintptr) (*Mapping, error) {
	return newAnonymousMapping(size)
}
