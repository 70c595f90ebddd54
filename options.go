package pfio

// Mode is a mapping access mode.
type Mode int

const (
	// ModeReadOnly shares a mapping and allows read-only access.
	ModeReadOnly Mode = iota

	// ModeReadWrite shares a mapping. Updates are visible to other
	// processes mapping the same region and are carried through to the
	// underlying file once Sync is called.
	ModeReadWrite

	// ModeWriteCopy creates a private copy-on-write mapping. Updates are
	// not visible to other processes and are not carried through to the
	// underlying file.
	ModeWriteCopy
)

// Flag is a mapping flag.
type Flag int

const (
	// FlagExecutable marks mapped pages as executable.
	FlagExecutable Flag = 0x1
)

// OpenOption is the bitmask of options a FileIO is opened with.
type OpenOption uint32

const (
	// ReadOnly opens the file read-only; writes fail with
	// ErrorWriteFailure with its ReadOnly field set.
	ReadOnly OpenOption = 1 << iota
	// Create creates the file if it does not already exist.
	Create
	// Mapped establishes the mapping table immediately after open.
	Mapped
	// SyncIO makes writes durable synchronously at the descriptor level.
	SyncIO
	// DirectIO bypasses the OS page cache where supported; buffers used
	// for positional I/O must be page-aligned.
	DirectIO
	// NonDurable backs the file with shared memory / tmpfs; contents may
	// vanish on crash.
	NonDurable
	// RandomAccess hints that access will be non-sequential.
	RandomAccess
	// Readahead hints that the back-end should prefetch when mapping.
	Readahead
	// CloseDontNeed tells the OS it may drop cached pages for this file
	// on Close.
	CloseDontNeed
)

// Has reports whether the receiver includes all bits of other.
func (o OpenOption) Has(other OpenOption) bool {
	return o&other == other
}

// PreallocateMode controls the FileIO.ExpandLength preallocation policy.
type PreallocateMode int

const (
	// PreallocateNever never attempts preallocation on grow.
	PreallocateNever PreallocateMode = iota
	// PreallocateOptional preallocates only when a fast extent API is
	// available; otherwise the grow proceeds without forcing allocation.
	PreallocateOptional
	// PreallocateAlways always preallocates, falling back to a
	// non-destructive zero-fill when no fast extent API is available.
	PreallocateAlways
)
