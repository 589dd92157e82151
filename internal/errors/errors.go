package errors

import (
	"errors"
	"fmt"
)

// Kind categorizes pipeline failures. Each kind carries a propagation
// policy: fatal kinds abort the running phase, retryable kinds are handled
// locally with backoff, per-file kinds degrade to placeholder results.
type Kind int

const (
	// KindConfigInvalid - malformed config, weights that do not sum to 1,
	// unknown category. Fatal, exit 2.
	KindConfigInvalid Kind = iota
	// KindSourceUnavailable - permanent host error (401/403/404). Fatal, exit 3.
	KindSourceUnavailable
	// KindRateLimited - throttled by host or provider. Retryable with backoff.
	KindRateLimited
	// KindProviderExhausted - retry budget spent against one provider;
	// triggers fallback to the secondary provider.
	KindProviderExhausted
	// KindMalformedResponse - provider reply did not contain the required
	// JSON object. Per-file, non-fatal.
	KindMalformedResponse
	// KindScannerUnavailable - scanner missing or below minimum version.
	// Non-fatal unless it is the only requested scanner.
	KindScannerUnavailable
	// KindScannerTimeout - scanner exceeded its wall-clock budget. Partial
	// output is discarded.
	KindScannerTimeout
	// KindStaleManifest - resolved commit disagrees with the manifest's
	// pinned commit_sha. Fatal, exit 2.
	KindStaleManifest
	// KindCancelled - cooperative shutdown. Partial manifest retained, exit 4.
	KindCancelled
	// KindCorruptManifest - manifest file is not valid JSON.
	KindCorruptManifest
	// KindSchemaMismatch - manifest JSON is missing required top-level keys.
	KindSchemaMismatch
	// KindInternal - unexpected internal state.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfigInvalid:
		return "ConfigInvalid"
	case KindSourceUnavailable:
		return "SourceUnavailable"
	case KindRateLimited:
		return "RateLimited"
	case KindProviderExhausted:
		return "ProviderExhausted"
	case KindMalformedResponse:
		return "MalformedResponse"
	case KindScannerUnavailable:
		return "ScannerUnavailable"
	case KindScannerTimeout:
		return "ScannerTimeout"
	case KindStaleManifest:
		return "StaleManifest"
	case KindCancelled:
		return "Cancelled"
	case KindCorruptManifest:
		return "CorruptManifest"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	default:
		return "Internal"
	}
}

// Error is a structured pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors of the same Kind, so callers can compare against a
// bare New(kind, "") sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind. Returns nil for a nil err.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// IsKind reports whether any error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether err should be retried with backoff.
func Retryable(err error) bool {
	return IsKind(err, KindRateLimited)
}

// Exit codes per the CLI contract.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitConfig             = 2
	ExitSourceUnavailable  = 3
	ExitCancelled          = 4
	ExitScannerUnavailable = 5
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitFailure
	}
	switch e.Kind {
	case KindConfigInvalid, KindStaleManifest:
		return ExitConfig
	case KindSourceUnavailable:
		return ExitSourceUnavailable
	case KindCancelled:
		return ExitCancelled
	case KindScannerUnavailable:
		return ExitScannerUnavailable
	default:
		return ExitFailure
	}
}
