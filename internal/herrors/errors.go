// Package herrors defines the error taxonomy shared across honeycomb's
// components, as described in the error handling design: a fixed set of
// sentinel kinds that every component wraps its failures in so that the
// daemon's response encoder can classify any error with errors.Is/errors.As
// without needing to know which component produced it.
package herrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the dispositions from the error
// handling design: some are returned to the caller as a structured
// response, others are fatal to the current launch or process.
type Kind int

const (
	// KindBadRequest covers malformed frames, unknown options and
	// out-of-range values. Returned to the caller as {error, badarg}.
	KindBadRequest Kind = iota
	// KindNotFound covers a binary or dependency library that could not
	// be located. Returned to the caller as {error, enoent}.
	KindNotFound
	// KindNotElf covers a staging target that is not a valid ELF object.
	KindNotElf
	// KindFsError covers mkdir/chown/copy/chmod failures. Fatal to the
	// current launch; the confinement directory is left for inspection.
	KindFsError
	// KindPrivilege covers a setresuid/setresgid readback mismatch.
	// Fatal to the current process.
	KindPrivilege
	// KindExecFailed covers an execve that returned to the caller.
	KindExecFailed
	// KindHookFailed covers a before/after hook that exited non-zero.
	KindHookFailed
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "badarg"
	case KindNotFound:
		return "enoent"
	case KindNotElf:
		return "not_elf"
	case KindFsError:
		return "fs_error"
	case KindPrivilege:
		return "privilege_error"
	case KindExecFailed:
		return "exec_failed"
	case KindHookFailed:
		return "hook_failed"
	default:
		return "error"
	}
}

// Error is a typed error carrying one of the Kind values above plus the
// underlying cause. Components should construct these with the New
// helpers below rather than fmt.Errorf directly, so callers can recover
// the Kind with errors.As.
type Error struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause (which may be nil) as an *Error of the given kind,
// annotated with the operation that produced it.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// BadRequest, NotFound, NotElf, FsError, Privilege, ExecFailed and
// HookFailed are convenience constructors for the Kind values above.
func BadRequest(op string, cause error) *Error { return New(KindBadRequest, op, cause) }
func NotFound(op string, cause error) *Error   { return New(KindNotFound, op, cause) }
func NotElf(op string, cause error) *Error     { return New(KindNotElf, op, cause) }
func FsError(op string, cause error) *Error    { return New(KindFsError, op, cause) }
func Privilege(op string, cause error) *Error  { return New(KindPrivilege, op, cause) }
func ExecFailed(op string, cause error) *Error { return New(KindExecFailed, op, cause) }
func HookFailed(op string, cause error) *Error { return New(KindHookFailed, op, cause) }

// KindOf recovers the Kind carried by err if it (or something it wraps)
// is an *Error, else reports KindBadRequest as the zero-value fallback
// callers should treat as "unclassified."
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBadRequest
}
