// Package log is a thin structured-logging facade over zap, used by
// pfio for best-effort-failure (directory sync, cache hints) and
// preallocation-fallback diagnostics. It is never called from the
// read/write hot path itself.
package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	base *zap.Logger
)

func root() *zap.Logger {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// SetLogger overrides the base logger, e.g. with a development logger
// in tests or a caller-supplied logger in embedding applications.
func SetLogger(l *zap.Logger) {
	// Spend the once first so a later root() cannot replace l.
	once.Do(func() {})
	base = l
}

// Named returns a sugared logger scoped to component, e.g. "fileio",
// "pagearray.joined".
func Named(component string) *zap.SugaredLogger {
	return root().Named(component).Sugar()
}
