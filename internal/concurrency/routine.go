package concurrency

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	toolbridgeErrors "github.com/harunnryd/toolbridge/internal/errors"
)

// SafeGo runs a function in a goroutine with panic recovery.
func SafeGo(fn func(), onPanic func(interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				slog.Error("Panic recovered", "panic", r, "stack", string(stack))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

// SafeCall runs fn on the calling goroutine and turns a panic into an
// ErrInternal error.
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered", "panic", r, "stack", string(debug.Stack()))
			err = toolbridgeErrors.Internal(fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}
