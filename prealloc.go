package pfio

import (
	"os"

	"go.uber.org/zap"
)

// preallocatePageSize is the granularity of the non-destructive
// zero-fill fallback probe: one byte is read at each
// page-aligned offset in the grown range and, if zero, rewritten with
// a zero to force block allocation without touching existing content.
var preallocatePageSize int64 = 4096

// preallocate implements the preallocation policy. mode controls
// whether preallocation is attempted at all (PreallocateNever),
// attempted only via a fast extent API (PreallocateOptional), or
// always attempted with a zero-fill fallback (PreallocateAlways).
func preallocate(f *os.File, offset, length int64, mode PreallocateMode, log *zap.SugaredLogger) error {
	if mode == PreallocateNever || length <= 0 {
		return nil
	}
	result, err := currentBackend.preallocate(f, offset, length)
	if err != nil {
		return err
	}
	if result == preallocFast {
		return nil
	}
	if mode == PreallocateOptional {
		// Cheap path unavailable; optional preallocation simply does
		// not happen.
		return nil
	}
	log.Debugw("preallocation fallback to zero-fill", "offset", offset, "length", length)
	return zeroFillPreallocate(f, offset, length)
}

// zeroFillPreallocate is the non-destructive fallback: for every
// page-aligned offset in [offset, offset+length), read one byte; if it
// is already non-zero the block is presumably allocated and is left
// untouched, otherwise a zero is written back to force the filesystem
// to materialize the block while leaving logical content unchanged.
// Used when the platform has no fast extent API, or when the caller
// requires preallocation unconditionally.
func zeroFillPreallocate(f *os.File, offset, length int64) error {
	buf := make([]byte, 1)
	end := offset + length
	for pos := alignDown(offset, preallocatePageSize); pos < end; pos += preallocatePageSize {
		n, err := f.ReadAt(buf, pos)
		if n == 0 && err != nil {
			// Past current EOF: nothing allocated here yet, zero is
			// implied; forcing allocation means writing the byte.
			buf[0] = 0
		} else if buf[0] != 0 {
			continue
		}
		if _, err := f.WriteAt([]byte{0}, pos); err != nil {
			return &ErrorWriteFailure{Offset: pos, Cause: err}
		}
	}
	return nil
}

func alignDown(v, align int64) int64 {
	return v - (v % align)
}
