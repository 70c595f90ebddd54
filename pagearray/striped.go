package pagearray

import (
	"go.uber.org/multierr"
)

// Striped is a round-robin composition of N arrays. Page i lives on
// stripe i mod N at local index i / N. All stripes must agree on page
// size.
type Striped struct {
	stripes []PageArray
}

// NewStriped composes stripes into a single round-robin array. All
// stripes must report the same page size.
func NewStriped(stripes []PageArray) (*Striped, error) {
	if len(stripes) == 0 {
		return nil, &ErrorInvalidIndex{Index: 0}
	}
	size := stripes[0].PageSize()
	for _, s := range stripes[1:] {
		if s.PageSize() != size {
			return nil, &ErrorPageSizeMismatch{Expected: size, Actual: s.PageSize()}
		}
	}
	return &Striped{stripes: stripes}, nil
}

func (s *Striped) PageSize() int64 { return s.stripes[0].PageSize() }

func (s *Striped) n() int64 { return int64(len(s.stripes)) }

// PageCount sums each stripe's page count, saturating to the maximum
// finite total on overflow.
func (s *Striped) PageCount() (int64, error) {
	var total int64
	for _, stripe := range s.stripes {
		c, err := stripe.PageCount()
		if err != nil {
			return 0, err
		}
		if total > maxInt64-c {
			return maxInt64, nil
		}
		total += c
	}
	return total, nil
}

// PageCountLimit is the minimum of the stripes' limits, times N.
func (s *Striped) PageCountLimit() int64 {
	min := s.stripes[0].PageCountLimit()
	for _, stripe := range s.stripes[1:] {
		if l := stripe.PageCountLimit(); l < min {
			min = l
		}
	}
	n := s.n()
	if min > maxInt64/n {
		return maxInt64
	}
	return min * n
}

// stripePageCounts divides n pages as evenly as possible across
// stripes: ceil(n/N) on the first n mod N stripes when n is not a
// multiple of N, matching round-robin assignment of pages
// [0, n) by i mod N.
func (s *Striped) stripePageCounts(n int64) []int64 {
	N := s.n()
	base := n / N
	rem := n % N
	counts := make([]int64, N)
	for i := int64(0); i < N; i++ {
		counts[i] = base
		if i < rem {
			counts[i]++
		}
	}
	return counts
}

// TruncatePageCount divides n across all stripes following the same
// round-robin assignment as page routing.
func (s *Striped) TruncatePageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	counts := s.stripePageCounts(n)
	for i, stripe := range s.stripes {
		if err := stripe.TruncatePageCount(counts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Striped) ExpandPageCount(n int64) error {
	if n < 0 {
		return &ErrorInvalidIndex{Index: n}
	}
	counts := s.stripePageCounts(n)
	for i, stripe := range s.stripes {
		if err := stripe.ExpandPageCount(counts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Striped) route(i int64) (PageArray, int64, error) {
	if i < 0 {
		return nil, 0, &ErrorInvalidIndex{Index: i}
	}
	n := s.n()
	return s.stripes[i%n], i / n, nil
}

func (s *Striped) ReadPage(i int64, dst []byte, off int) error {
	stripe, local, err := s.route(i)
	if err != nil {
		return err
	}
	return stripe.ReadPage(local, dst, off)
}

func (s *Striped) WritePage(i int64, src []byte, off int) error {
	stripe, local, err := s.route(i)
	if err != nil {
		return err
	}
	return stripe.WritePage(local, src, off)
}

func (s *Striped) EvictPage(i int64, buf []byte) error {
	stripe, local, err := s.route(i)
	if err != nil {
		return err
	}
	return stripe.EvictPage(local, buf)
}

func (s *Striped) Flush(i int64) error {
	stripe, local, err := s.route(i)
	if err != nil {
		return err
	}
	return stripe.Flush(local)
}

func (s *Striped) DirectPageAddress(i int64) (uintptr, error) {
	stripe, local, err := s.route(i)
	if err != nil {
		return 0, err
	}
	return stripe.DirectPageAddress(local)
}

func (s *Striped) CopyPage(src, dst int64) error {
	srcStripe, srcLocal, err := s.route(src)
	if err != nil {
		return err
	}
	dstStripe, dstLocal, err := s.route(dst)
	if err != nil {
		return err
	}
	if srcStripe == dstStripe {
		return srcStripe.CopyPage(srcLocal, dstLocal)
	}
	if addr, err := srcStripe.DirectPageAddress(srcLocal); err == nil {
		return dstStripe.CopyPageFromAddress(addr, dstLocal)
	}
	buf := make([]byte, s.PageSize())
	if err := srcStripe.ReadPage(srcLocal, buf, 0); err != nil {
		return err
	}
	return dstStripe.WritePage(dstLocal, buf, 0)
}

func (s *Striped) CopyPageFromAddress(src uintptr, dst int64) error {
	stripe, local, err := s.route(dst)
	if err != nil {
		return err
	}
	return stripe.CopyPageFromAddress(src, local)
}

// Sync fans out N-1 stripes to worker goroutines and syncs the last
// stripe in place on the caller, then joins all and merges errors.
func (s *Striped) Sync(metadata bool) error {
	last := len(s.stripes) - 1
	results := make(chan error, last)
	for _, stripe := range s.stripes[:last] {
		stripe := stripe
		go func() { results <- stripe.Sync(metadata) }()
	}
	err := s.stripes[last].Sync(metadata)
	for range s.stripes[:last] {
		err = multierr.Append(err, <-results)
	}
	return err
}

func (s *Striped) Close(cause error) error {
	var err error
	for _, stripe := range s.stripes {
		err = multierr.Append(err, stripe.Close(cause))
	}
	return err
}

func (s *Striped) IsClosed() bool {
	for _, stripe := range s.stripes {
		if !stripe.IsClosed() {
			return false
		}
	}
	return true
}

func (s *Striped) IsReadOnly() bool {
	for _, stripe := range s.stripes {
		if stripe.IsReadOnly() {
			return true
		}
	}
	return false
}

func (s *Striped) IsEmpty() bool {
	for _, stripe := range s.stripes {
		if !stripe.IsEmpty() {
			return false
		}
	}
	return true
}
