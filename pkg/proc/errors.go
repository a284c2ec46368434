package proc

import "fmt"

// Error is a debugger-level error: bad arguments, violated invariants or a
// failure message relayed from the child. OS-level failures are reported as
// plain wrapped errnos instead, with the failing operation as prefix.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

func errorf(format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// errnoError wraps a failed syscall so callers can still reach the errno
// through errors.Unwrap.
func errnoError(prefix string, err error) error {
	return fmt.Errorf("%s: %w", prefix, err)
}
