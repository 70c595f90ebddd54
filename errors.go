package pfio

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorNotFound is returned when opening a missing file without CREATE,
// or when the target is a directory rather than a regular file.
type ErrorNotFound struct {
	// Path specifies the file path that was not found.
	Path string
}

func (err *ErrorNotFound) Error() string {
	return fmt.Sprintf("pfio: file not found (%s)", err.Path)
}

// ErrorPermission is returned when the file cannot be opened or accessed
// in the requested mode.
type ErrorPermission struct {
	// Path specifies the file path.
	Path string
	// Op specifies the attempted operation, e.g. "open" or "write".
	Op string
}

func (err *ErrorPermission) Error() string {
	return fmt.Sprintf("pfio: permission denied for %s (%s)", err.Op, err.Path)
}

// ErrorEndOfFile is returned when a positional read extends past the
// current file length. It carries the offset at which the read began.
type ErrorEndOfFile struct {
	// Offset specifies the read offset.
	Offset int64
}

func (err *ErrorEndOfFile) Error() string {
	return fmt.Sprintf("pfio: end of file at offset 0x%x", err.Offset)
}

// ErrorWriteFailure is returned when a write fails. If the underlying
// file is read-only, ReadOnly is set so callers can distinguish a
// genuine I/O failure from a rejected write against a read-only file.
type ErrorWriteFailure struct {
	// Offset specifies the write offset.
	Offset int64
	// ReadOnly is true if the failure is a consequence of the file
	// having been opened read-only.
	ReadOnly bool
	// Cause specifies the underlying error, if any.
	Cause error
}

func (err *ErrorWriteFailure) Error() string {
	if err.ReadOnly {
		return fmt.Sprintf("pfio: write failed at offset 0x%x (file is read-only)", err.Offset)
	}
	return fmt.Sprintf("pfio: write failed at offset 0x%x: %v", err.Offset, err.Cause)
}

func (err *ErrorWriteFailure) Unwrap() error {
	return err.Cause
}

// ErrorMapping is returned when a mapping cannot be created: the table
// would exceed the addressable mapping count, the OS refused the
// mapping, or the mapping table allocation failed.
type ErrorMapping struct {
	// Reason is a short, human-readable description.
	Reason string
	// Cause specifies the underlying error, if any.
	Cause error
}

func (err *ErrorMapping) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("pfio: mapping failed (%s): %v", err.Reason, err.Cause)
	}
	return fmt.Sprintf("pfio: mapping failed (%s)", err.Reason)
}

func (err *ErrorMapping) Unwrap() error {
	return err.Cause
}

// ErrorFull is returned when a write targets a page index beyond the
// fixed capacity of a fully-mapped page array.
type ErrorFull struct {
	// Index specifies the offending page index.
	Index int64
}

func (err *ErrorFull) Error() string {
	return fmt.Sprintf("pfio: array is full (page %d)", err.Index)
}

// ErrorClosed is returned for any operation attempted on a closed
// FileIO, Mapping, or PageArray. Cause, if set, is the error that was
// recorded when Close was called with a failure reason.
type ErrorClosed struct {
	// Cause specifies the originally recorded close cause, if any.
	Cause error
}

func (err *ErrorClosed) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("pfio: closed: %v", err.Cause)
	}
	return "pfio: closed"
}

func (err *ErrorClosed) Unwrap() error {
	return err.Cause
}

// ErrorInterrupted is returned when a timed wait (currently only
// syncWait's throttling wait) is aborted because the waiting goroutine
// observed a cancellation signal.
type ErrorInterrupted struct{}

func (err *ErrorInterrupted) Error() string {
	return "pfio: interrupted"
}

// ErrorUnsupported is returned when an operation is not implemented by
// the current back-end or array configuration, e.g. directPageAddress
// on an array that is not fully mapped.
type ErrorUnsupported struct {
	// Operation names the unsupported operation.
	Operation string
}

func (err *ErrorUnsupported) Error() string {
	return fmt.Sprintf("pfio: unsupported operation (%s)", err.Operation)
}

// ErrorCorrupt wraps an unexpected failure encountered while closing a
// FileIO after a prior failure; this layer never originates Corrupt on
// its own, it only wraps into it on close-on-failure per spec.
type ErrorCorrupt struct {
	// Cause specifies the underlying error.
	Cause error
}

func (err *ErrorCorrupt) Error() string {
	return fmt.Sprintf("pfio: corrupt: %v", err.Cause)
}

func (err *ErrorCorrupt) Unwrap() error {
	return err.Cause
}

// --- fine-grained Mapping/Transaction-level errors, teacher-derived ---

// ErrorInvalidOffset is returned when a given offset is invalid for the
// mapping or transaction being addressed.
type ErrorInvalidOffset struct{ Offset int64 }

func (err *ErrorInvalidOffset) Error() string {
	return fmt.Sprintf("pfio: invalid offset 0x%x", err.Offset)
}

// ErrorInvalidLength is returned when a given length is invalid, e.g.
// zero or larger than the region it is measured against.
type ErrorInvalidLength struct{ Length uintptr }

func (err *ErrorInvalidLength) Error() string {
	return fmt.Sprintf("pfio: invalid length %d", err.Length)
}

// ErrorInvalidMode is returned when an invalid Mode value is given to
// a mapping constructor.
type ErrorInvalidMode struct{ Mode Mode }

func (err *ErrorInvalidMode) Error() string {
	return fmt.Sprintf("pfio: invalid mode 0x%x", err.Mode)
}

// ErrorIllegalOperation is returned when an operation is attempted that
// the mapping's current mode does not permit, e.g. writing to a
// read-only mapping.
type ErrorIllegalOperation struct{ Operation string }

func (err *ErrorIllegalOperation) Error() string {
	return fmt.Sprintf("pfio: illegal operation (%s)", err.Operation)
}

// ErrorLocked is returned when Lock is called on an already-locked
// mapping.
type ErrorLocked struct{}

func (err *ErrorLocked) Error() string { return "pfio: mapping locked" }

// ErrorUnlocked is returned when Unlock is called on a mapping that is
// not currently locked.
type ErrorUnlocked struct{}

func (err *ErrorUnlocked) Error() string { return "pfio: mapping unlocked" }

// ErrorPartialCommit is returned when a Transaction.Commit could not
// write back the full snapshot.
type ErrorPartialCommit struct{ NumBytes int }

func (err *ErrorPartialCommit) Error() string {
	return fmt.Sprintf("pfio: partial commit (%d bytes)", err.NumBytes)
}

// ErrorTransactionClosed is returned for any operation on a transaction
// that already committed or rolled back.
type ErrorTransactionClosed struct{}

func (err *ErrorTransactionClosed) Error() string { return "pfio: transaction closed" }

// wrapClose chains a new error onto a previously recorded close cause,
// if any, using github.com/pkg/errors so callers can still unwrap to
// the original cause with errors.Cause/errors.As.
func wrapClose(cause error) *ErrorClosed {
	if cause == nil {
		return &ErrorClosed{}
	}
	return &ErrorClosed{Cause: errors.WithStack(cause)}
}
