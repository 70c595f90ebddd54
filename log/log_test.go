package log

import (
	"testing"

	"go.uber.org/zap"
)

func TestNamedReturnsUsableLogger(t *testing.T) {
	SetLogger(zap.NewNop())
	l := Named("test")
	if l == nil {
		t.Fatal("expected a non-nil sugared logger")
	}
	l.Debugw("message", "key", "value")
}
