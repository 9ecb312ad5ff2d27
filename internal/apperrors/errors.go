// Package apperrors defines the error taxonomy shared by the call screening core.
//
// Every failure that leaves a service returns an error that matches exactly one
// Kind via errors.Is. The transport layer chooses its response from the Kind;
// it never inspects error text.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind sentinels. Wrap them with New/Wrap; match them with errors.Is.
var (
	// ErrValidation: caller-supplied input has the wrong shape.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: referenced call or callback does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidTransition: the record's current status forbids the mutation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidAction: a routing action outside the closed enum reached the policy.
	ErrInvalidAction = errors.New("invalid routing action")
	// ErrTranscription: the transcriber failed.
	ErrTranscription = errors.New("transcription failed")
	// ErrClassification: the classifier failed.
	ErrClassification = errors.New("classification failed")
	// ErrSynthesis: the speech synthesizer failed.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrTimeout: an external collaborator exceeded its deadline.
	ErrTimeout = errors.New("operation timeout")
	// ErrMalformedResult: a collaborator returned a payload that could not be parsed.
	ErrMalformedResult = errors.New("malformed collaborator result")
	// ErrUnavailable: storage or cache could not be reached.
	ErrUnavailable = errors.New("dependency unavailable")
	// ErrOverloaded: a concurrency cap or work queue is full.
	ErrOverloaded = errors.New("too many in-flight requests")
)

// Error carries the kind, the failing operation and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a formatted detail message.
func New(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an underlying error. A nil err yields nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the taxonomy kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrInvalidTransition,
	ErrInvalidAction,
	ErrTimeout,
	ErrMalformedResult,
	ErrTranscription,
	ErrClassification,
	ErrSynthesis,
	ErrUnavailable,
	ErrOverloaded,
}

// Retryable reports whether repeating the same request may succeed.
// Collaborator failures and timeouts never leave a partial write behind, so the
// stage is safe to retry. Malformed results need investigation first.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrTranscription, ErrClassification, ErrSynthesis, ErrTimeout, ErrUnavailable, ErrOverloaded:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInvalidTransition reports whether err is or wraps ErrInvalidTransition.
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsTimeout reports whether err is or wraps ErrTimeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsMalformedResult reports whether err is or wraps ErrMalformedResult.
func IsMalformedResult(err error) bool { return errors.Is(err, ErrMalformedResult) }
