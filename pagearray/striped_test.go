package pagearray

import (
	"bytes"
	"testing"
)

func newTestStripes(t *testing.T, n int) []PageArray {
	stripes := make([]PageArray, n)
	for i := 0; i < n; i++ {
		b, err := NewBase(openTestFileIO(t, string(rune('a'+i))), 16, false)
		if err != nil {
			t.Fatal(err)
		}
		stripes[i] = b
	}
	return stripes
}

func TestStripedRoundRobinRouting(t *testing.T) {
	stripes := newTestStripes(t, 3)
	s, err := NewStriped(stripes)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(nil)

	if err := s.ExpandPageCount(9); err != nil {
		t.Fatal(err)
	}
	// page 4 -> stripe 4%3=1, local index 4/3=1
	payload := bytes.Repeat([]byte{'M'}, 16)
	if err := s.WritePage(4, payload, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if err := stripes[1].ReadPage(1, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("page 4 should route to stripe 1 local index 1, got %q", buf)
	}
	if err := s.ReadPage(4, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("striped read at 4 mismatch, got %q", buf)
	}
}

func TestStripedPageCountDivision(t *testing.T) {
	stripes := newTestStripes(t, 3)
	s, err := NewStriped(stripes)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(nil)

	if err := s.ExpandPageCount(10); err != nil {
		t.Fatal(err)
	}
	total, err := s.PageCount()
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 {
		t.Fatalf("expected total pageCount 10, got %d", total)
	}
	// ceil(10/3) on the first 10%3=1 stripes, floor on the rest: 4,3,3.
	expect := []int64{4, 3, 3}
	for i, stripe := range stripes {
		n, err := stripe.PageCount()
		if err != nil {
			t.Fatal(err)
		}
		if n != expect[i] {
			t.Fatalf("stripe %d: expected %d pages, got %d", i, expect[i], n)
		}
	}
}

func TestStripedPageSizeMismatchRejected(t *testing.T) {
	a, err := NewBase(openTestFileIO(t, "-a"), 16, false)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(nil)
	b, err := NewBase(openTestFileIO(t, "-b"), 32, false)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(nil)
	if _, err := NewStriped([]PageArray{a, b}); err == nil {
		t.Fatal("expected mismatched page sizes across stripes to be rejected")
	}
}

func TestStripedSyncFansOut(t *testing.T) {
	stripes := newTestStripes(t, 4)
	s, err := NewStriped(stripes)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(nil)
	if err := s.ExpandPageCount(8); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync(false); err != nil {
		t.Fatal(err)
	}
}

func TestStripedPageCountLimit(t *testing.T) {
	stripes := newTestStripes(t, 2)
	s, err := NewStriped(stripes)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(nil)
	limit := s.PageCountLimit()
	expected := stripes[0].PageCountLimit() * 2
	if limit != expected {
		t.Fatalf("expected limit %d, got %d", expected, limit)
	}
}
