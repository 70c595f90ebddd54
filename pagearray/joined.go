package pagearray

import (
	"go.uber.org/multierr"
)

// Joined is a sequential composition of two arrays A and B with a
// fixed join index J. Pages [0, J) route to A;
// pages [J, ∞) route to B at index i-J. A and B need not share a page
// size; routing never multiplies across arrays, each side multiplies
// by its own page size.
type Joined struct {
	a, b      PageArray
	joinIndex int64
}

// NewJoined composes a and b at joinIndex. a's current page count must
// not exceed joinIndex - a has a fixed region
// [0, joinIndex) to grow into, and b does not start until it.
func NewJoined(a, b PageArray, joinIndex int64) (*Joined, error) {
	if joinIndex < 0 {
		return nil, &ErrorInvalidIndex{Index: joinIndex}
	}
	aCount, err := a.PageCount()
	if err != nil {
		return nil, err
	}
	if aCount > joinIndex {
		return nil, &ErrorJoinIndexOutOfRange{JoinIndex: joinIndex, ACount: aCount}
	}
	return &Joined{a: a, b: b, joinIndex: joinIndex}, nil
}

// PageSize returns A's page size; callers composing a Joined array are
// expected to keep page sizes consistent across the regions they
// route to, the way Striped enforces it explicitly for its sub-arrays.
func (j *Joined) PageSize() int64 { return j.a.PageSize() }

func (j *Joined) PageCount() (int64, error) {
	bCount, err := j.b.PageCount()
	if err != nil {
		return 0, err
	}
	return j.joinIndex + bCount, nil
}

// PageCountLimit is A's limit when it exceeds J, otherwise B's limit
// offset by J.
func (j *Joined) PageCountLimit() int64 {
	aLimit := j.a.PageCountLimit()
	if aLimit > j.joinIndex {
		return aLimit
	}
	bLimit := j.b.PageCountLimit()
	if bLimit > maxInt64-j.joinIndex {
		return maxInt64
	}
	return j.joinIndex + bLimit
}

// TruncatePageCount truncates B to n-J when n >= J; when n < J it first
// empties B, then truncates A to n.
func (j *Joined) TruncatePageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	if n >= j.joinIndex {
		return j.b.TruncatePageCount(n - j.joinIndex)
	}
	if err := j.b.TruncatePageCount(0); err != nil {
		return err
	}
	return j.a.TruncatePageCount(n)
}

func (j *Joined) ExpandPageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	if n <= j.joinIndex {
		return j.a.ExpandPageCount(n)
	}
	if err := j.a.ExpandPageCount(j.joinIndex); err != nil {
		return err
	}
	return j.b.ExpandPageCount(n - j.joinIndex)
}

// route returns the sub-array and local index that page i belongs to.
func (j *Joined) route(i int64) (PageArray, int64, error) {
	if i < 0 {
		return nil, 0, &ErrorInvalidIndex{Index: i}
	}
	if i < j.joinIndex {
		return j.a, i, nil
	}
	return j.b, i - j.joinIndex, nil
}

func (j *Joined) ReadPage(i int64, dst []byte, off int) error {
	arr, local, err := j.route(i)
	if err != nil {
		return err
	}
	return arr.ReadPage(local, dst, off)
}

func (j *Joined) WritePage(i int64, src []byte, off int) error {
	arr, local, err := j.route(i)
	if err != nil {
		return err
	}
	return arr.WritePage(local, src, off)
}

func (j *Joined) EvictPage(i int64, buf []byte) error {
	arr, local, err := j.route(i)
	if err != nil {
		return err
	}
	return arr.EvictPage(local, buf)
}

func (j *Joined) Flush(i int64) error {
	arr, local, err := j.route(i)
	if err != nil {
		return err
	}
	return arr.Flush(local)
}

// DirectPageAddress routes to whichever side is fully mapped; it
// fails with ErrorUnsupported when that side isn't.
func (j *Joined) DirectPageAddress(i int64) (uintptr, error) {
	arr, local, err := j.route(i)
	if err != nil {
		return 0, err
	}
	return arr.DirectPageAddress(local)
}

// CopyPage copies across A/B using each side's DirectPageAddress when
// the pages land on different arrays; otherwise delegates to the
// owning side's own CopyPage.
func (j *Joined) CopyPage(src, dst int64) error {
	srcArr, srcLocal, err := j.route(src)
	if err != nil {
		return err
	}
	dstArr, dstLocal, err := j.route(dst)
	if err != nil {
		return err
	}
	if srcArr == dstArr {
		return srcArr.CopyPage(srcLocal, dstLocal)
	}
	addr, err := srcArr.DirectPageAddress(srcLocal)
	if err != nil {
		buf := make([]byte, j.PageSize())
		if err := srcArr.ReadPage(srcLocal, buf, 0); err != nil {
			return err
		}
		return dstArr.WritePage(dstLocal, buf, 0)
	}
	return dstArr.CopyPageFromAddress(addr, dstLocal)
}

func (j *Joined) CopyPageFromAddress(src uintptr, dst int64) error {
	arr, local, err := j.route(dst)
	if err != nil {
		return err
	}
	return arr.CopyPageFromAddress(src, local)
}

// Sync submits A's sync to a worker goroutine and runs B's sync on the
// caller, joins both, and merges errors rather than losing one.
func (j *Joined) Sync(metadata bool) error {
	done := make(chan error, 1)
	go func() { done <- j.a.Sync(metadata) }()
	bErr := j.b.Sync(metadata)
	aErr := <-done
	return multierr.Append(aErr, bErr)
}

func (j *Joined) Close(cause error) error {
	aErr := j.a.Close(cause)
	bErr := j.b.Close(cause)
	return multierr.Append(aErr, bErr)
}

func (j *Joined) IsClosed() bool {
	return j.a.IsClosed() && j.b.IsClosed()
}

func (j *Joined) IsReadOnly() bool {
	return j.a.IsReadOnly() || j.b.IsReadOnly()
}

func (j *Joined) IsEmpty() bool {
	return j.a.IsEmpty() && j.b.IsEmpty()
}
