package infra

import (
	"log/slog"
	"os"
	"runtime/debug"
)

// Recover logs an unhandled panic with its stack and exits nonzero.
// Intended as `defer infra.Recover()` at the top of main.
func Recover() {
	if r := recover(); r != nil {
		slog.Error("unhandled panic", "panic", r, "stack", string(debug.Stack()))
		os.Exit(1)
	}
}
