package kernel

import "errors"

// Error is a kernel error tagged with the subsystem that raised it. Kernel
// code declares its errors as package-level *Error values and returns those:
// interrupt handlers and early boot run without an allocator, so reporting
// an error must not build anything.
type Error struct {
	// Module names the reporting subsystem ("gate", "timer", ...).
	Module string

	// Message describes the failure.
	Message string
}

// Error implements the error interface. Only Message is returned; callers
// that want the module tag print it themselves.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is a kernel error with the same module and
// message, so errors.Is also matches copies of a package-level error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && e.Module == t.Module && e.Message == t.Message
}

// errRuntime carries the text of panic values that are not kernel errors.
// There is a single instance; the kernel runs on one CPU and a panic never
// returns.
var errRuntime = &Error{Module: "rt", Message: "unknown cause"}

// ErrorFrom converts a recovered or explicitly raised panic value into a
// kernel error. Kernel errors are returned as is, even when wrapped. Strings
// and other errors are reported under the "rt" module. Any other value,
// including nil, yields nil.
func ErrorFrom(v interface{}) *Error {
	switch t := v.(type) {
	case *Error:
		return t
	case string:
		errRuntime.Message = t
		return errRuntime
	case error:
		var kerr *Error
		if errors.As(t, &kerr) {
			return kerr
		}
		errRuntime.Message = t.Error()
		return errRuntime
	}
	return nil
}
