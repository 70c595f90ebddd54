package pagearray

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/alexeymaximov/go-pfio"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testPath(t *testing.T, suffix string) string {
	path := filepath.Join(os.TempDir(), "pagearray-"+t.Name()+suffix+".test")
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func openTestFileIO(t *testing.T, suffix string) *pfio.FileIO {
	fio, err := pfio.Open(testPath(t, suffix), pfio.Create|pfio.Mapped, 0600, pfio.PreallocateNever, 0)
	if err != nil {
		t.Fatal(err)
	}
	return fio
}

func TestBaseReadWritePage(t *testing.T) {
	fio := openTestFileIO(t, "")
	base, err := NewBase(fio, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close(nil)

	if err := base.ExpandPageCount(4); err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte{'Z'}, 16)
	if err := base.WritePage(2, payload, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if err := base.ReadPage(2, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("expected %q, got %q", payload, buf)
	}
	n, err := base.PageCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected page count 4, got %d", n)
	}
}

func TestBaseReadOnlyRejectsWrite(t *testing.T) {
	fio := openTestFileIO(t, "")
	base, err := NewBase(fio, 16, true)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close(nil)
	if err := base.WritePage(0, make([]byte, 16), 0); err == nil {
		t.Fatal("expected write to a read-only page array to fail")
	}
}

func TestBaseInvalidPageSize(t *testing.T) {
	fio := openTestFileIO(t, "")
	defer fio.Close(nil)
	if _, err := NewBase(fio, 0, false); err == nil {
		t.Fatal("expected NewBase with page size 0 to fail")
	}
}

func TestBaseNegativeIndex(t *testing.T) {
	fio := openTestFileIO(t, "")
	base, err := NewBase(fio, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close(nil)
	if err := base.ReadPage(-1, make([]byte, 16), 0); err == nil {
		t.Fatal("expected negative page index to fail")
	}
}

func TestBaseIsEmpty(t *testing.T) {
	fio := openTestFileIO(t, "")
	base, err := NewBase(fio, 16, false)
	if err != nil {
		t.Fatal(err)
	}
	defer base.Close(nil)
	if !base.IsEmpty() {
		t.Fatal("expected a freshly opened array to be empty")
	}
	if err := base.ExpandPageCount(1); err != nil {
		t.Fatal(err)
	}
	if base.IsEmpty() {
		t.Fatal("expected array to no longer be empty after expand")
	}
}
