package pfio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testPath = filepath.Join(os.TempDir(), "pfio-mapping.test")
var testLength = uintptr(1 << 20)

var testBuffer = []byte{'H', 'E', 'L', 'L', 'O'}

func testClose(t *testing.T, closer io.Closer) {
	if err := closer.Close(); err != nil {
		if _, ok := err.(*ErrorClosed); !ok {
			t.Fatal(err)
		}
	}
}

func makeTestFile(t *testing.T, rewrite bool) (*os.File, error) {
	if rewrite {
		if _, err := os.Stat(testPath); err == nil || !os.IsNotExist(err) {
			if err := os.Remove(testPath); err != nil {
				return nil, err
			}
		}
	}
	f, err := os.OpenFile(testPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(testLength)); err != nil {
		testClose(t, f)
		return nil, err
	}
	return f, nil
}

func makeTestMapping(t *testing.T, mode Mode) (*Mapping, error) {
	f, err := makeTestFile(t, true)
	if err != nil {
		return nil, err
	}
	defer testClose(t, f)
	return newMapping(f.Fd(), 0, testLength, mode, 0)
}

func TestMappingReadWrite(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(testBuffer))
	if _, err := m.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testBuffer) {
		t.Fatalf("buffer must be %q, %v found", testBuffer, buf)
	}
}

func TestMappingReadOnlyRejectsWrite(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err == nil {
		t.Fatal("expected write to a read-only mapping to fail")
	}
}

func TestMappingSync(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Sync(); err != nil {
		t.Fatal(err)
	}
	f, err := makeTestFile(t, false)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, f)
	buf := make([]byte, len(testBuffer))
	if _, err := f.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testBuffer) {
		t.Fatalf("sync did not reach the file: %q", buf)
	}
}

func TestMappingLockUnlock(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if err := m.Lock(); err != nil {
		t.Skipf("mlock unavailable in this environment: %v", err)
	}
	if err := m.Lock(); err == nil {
		t.Fatal("expected double Lock to fail")
	}
	if err := m.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := m.Unlock(); err == nil {
		t.Fatal("expected double Unlock to fail")
	}
}

func TestMappingDoubleClose(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err == nil {
		t.Fatal("expected second Close to report ErrorClosed")
	}
}

func TestAnonymousMapping(t *testing.T) {
	m, err := newAnonymousMapping(4096)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(testBuffer))
	if _, err := m.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testBuffer) {
		t.Fatalf("anonymous mapping round-trip mismatch: %q", buf)
	}
}

func TestTransactionCommit(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err != nil {
		t.Fatal(err)
	}
	tx, err := m.Begin(0, uintptr(len(testBuffer)))
	if err != nil {
		t.Fatal(err)
	}
	replacement := []byte{'W', 'O', 'R', 'L', 'D'}
	if _, err := tx.WriteAt(replacement, 0); err != nil {
		t.Fatal(err)
	}
	// Before commit, the mapping still reflects the old bytes.
	buf := make([]byte, len(testBuffer))
	if _, err := m.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testBuffer) {
		t.Fatalf("mapping must be unaffected before commit, got %q", buf)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, replacement) {
		t.Fatalf("mapping must reflect committed bytes, got %q", buf)
	}
}

func TestTransactionRollback(t *testing.T) {
	m, err := makeTestMapping(t, ModeReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer testClose(t, m)
	if _, err := m.WriteAt(testBuffer, 0); err != nil {
		t.Fatal(err)
	}
	tx, err := m.Begin(0, uintptr(len(testBuffer)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.WriteAt([]byte{'W', 'O', 'R', 'L', 'D'}, 0); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, len(testBuffer))
	if _, err := m.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testBuffer) {
		t.Fatalf("mapping must be unaffected after rollback, got %q", buf)
	}
	if _, err := tx.WriteAt(testBuffer, 0); err == nil {
		t.Fatal("expected operations on a rolled-back transaction to fail")
	}
}
