package pagearray

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexeymaximov/go-pfio"
)

func TestMappedFileReadWrite(t *testing.T) {
	path := filepath.Join(os.TempDir(), "pagearray-mapped-"+t.Name()+".test")
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	arr, err := NewMappedFile(path, 0600, 16, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)

	if !arr.IsEmpty() {
		t.Fatal("expected a freshly created mapped array to be empty")
	}
	payload := bytes.Repeat([]byte{'Q'}, 16)
	if err := arr.WritePage(1, payload, 0); err != nil {
		t.Fatal(err)
	}
	if arr.IsEmpty() {
		t.Fatal("expected array to no longer be empty after a write")
	}
	buf := make([]byte, 16)
	if err := arr.ReadPage(1, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("expected %q, got %q", payload, buf)
	}
}

func TestMappedFileWriteBeyondCapacityFails(t *testing.T) {
	path := filepath.Join(os.TempDir(), "pagearray-mapped-"+t.Name()+".test")
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	arr, err := NewMappedFile(path, 0600, 16, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)

	err = arr.WritePage(2, make([]byte, 16), 0)
	if _, ok := err.(*pfio.ErrorFull); !ok {
		t.Fatalf("expected ErrorFull, got %v", err)
	}
}

func TestMappedFileSync(t *testing.T) {
	path := filepath.Join(os.TempDir(), "pagearray-mapped-"+t.Name()+".test")
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	arr, err := NewMappedFile(path, 0600, 16, 2)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte{'R'}, 16)
	if err := arr.WritePage(0, payload, 0); err != nil {
		t.Fatal(err)
	}
	if err := arr.Sync(true); err != nil {
		t.Fatal(err)
	}
	if err := arr.Close(nil); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw[:16], payload) {
		t.Fatalf("sync did not persist page 0 to disk")
	}
}

func TestMappedFileDoubleCloseIsSafe(t *testing.T) {
	path := filepath.Join(os.TempDir(), "pagearray-mapped-"+t.Name()+".test")
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	arr, err := NewMappedFile(path, 0600, 16, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := arr.Close(nil); err != nil {
		t.Fatal(err)
	}
	if err := arr.Close(nil); err == nil {
		t.Fatal("expected second Close to report ErrorClosed")
	}
}

func TestMappedAnonymous(t *testing.T) {
	arr, err := NewMappedAnonymous(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)
	if !arr.IsEmpty() {
		t.Fatal("expected anonymous array to start empty")
	}
	payload := bytes.Repeat([]byte{'S'}, 16)
	if err := arr.WritePage(3, payload, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if err := arr.ReadPage(3, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("expected %q, got %q", payload, buf)
	}
}

func TestMappedDirectPageAddress(t *testing.T) {
	arr, err := NewMappedAnonymous(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)
	addr, err := arr.DirectPageAddress(1)
	if err != nil {
		t.Fatal(err)
	}
	if addr == 0 {
		t.Fatal("expected a non-zero page address")
	}
}

func TestMappedCopyPageFromAddress(t *testing.T) {
	arr, err := NewMappedAnonymous(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)
	payload := bytes.Repeat([]byte{'U'}, 16)
	if err := arr.WritePage(0, payload, 0); err != nil {
		t.Fatal(err)
	}
	addr, err := arr.DirectPageAddress(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := arr.CopyPageFromAddress(addr, 2); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if err := arr.ReadPage(2, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("expected copy-from-address to match source page, got %q", buf)
	}

	if err := arr.CopyPageFromAddress(addr, 4); !isErrorFull(err) {
		t.Fatalf("expected ErrorFull copying past capacity, got %v", err)
	}
}

func isErrorFull(err error) bool {
	_, ok := err.(*pfio.ErrorFull)
	return ok
}

func TestMappedCopyPage(t *testing.T) {
	arr, err := NewMappedAnonymous(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Close(nil)
	payload := bytes.Repeat([]byte{'T'}, 16)
	if err := arr.WritePage(0, payload, 0); err != nil {
		t.Fatal(err)
	}
	if err := arr.CopyPage(0, 2); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 16)
	if err := arr.ReadPage(2, buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("expected copy to match source page, got %q", buf)
	}
}
