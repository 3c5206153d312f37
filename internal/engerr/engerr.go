// Package engerr classifies engine errors into the kinds spec.md §7
// enumerates (configuration, semantic, numerical, transient, user-intent)
// so callers can decide exit codes and logging policy without string
// matching. Grounded on the teacher's wrap-log-return idiom
// (netparams.SheetByNameTry and similar), expressed here as sentinel-wrapped
// errors rather than a third-party error-kind library, since the corpus
// itself never reaches for one.
package engerr

import (
	"errors"
	"fmt"
	"log"
)

// Kind identifies which policy in spec.md §7 applies to an error.
type Kind int

const (
	Configuration Kind = iota
	SemanticKind
	Numerical
	Transient
	UserIntent
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case SemanticKind:
		return "semantic"
	case Numerical:
		return "numerical"
	case Transient:
		return "transient"
	case UserIntent:
		return "user-intent"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with its kind so error-handling policy
// can be selected at the boundary (CLI main, control channel) with a type
// switch instead of string inspection.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Config wraps a configuration-time error (missing/unreadable file, bad
// flag, malformed script). Policy: print diagnostic, exit 1 before any
// simulation work.
func Config(op string, err error) error { return wrap(Configuration, op, err) }

// Semantic wraps a post-partial-build error (dangling population
// reference, unused synapse type, no motor population when lung enabled).
// Policy: print diagnostic, exit 1 after partial build.
func Semantic(op string, err error) error { return wrap(SemanticKind, op, err) }

// Numeric wraps an error during the tick loop's numerical subsystems (ODE
// non-convergence, lung volume underflow, nonfinite intermediate). Policy:
// dump offending state, exit 1.
func Numeric(op string, err error) error { return wrap(Numerical, op, err) }

// Transientf wraps a recoverable runtime condition (socket peer drop).
// Policy: log, close the affected stream, continue the run.
func Transientf(op string, err error) error { return wrap(Transient, op, err) }

// UserIntentf wraps a clean-shutdown trigger (terminate command, OS
// signal). Policy: flush outputs, exit 0.
func UserIntentf(op string, err error) error { return wrap(UserIntent, op, err) }

// KindOf extracts the Kind from err, defaulting to SemanticKind if err was
// not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return SemanticKind
}

// Log writes err to the standard logger and returns it unchanged, so call
// sites can `return engerr.Log(err)` at the point of failure.
func Log(err error) error {
	if err != nil {
		log.Println(err)
	}
	return err
}
