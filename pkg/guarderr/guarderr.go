// Package guarderr defines the shared error taxonomy used across the
// governance core. Every subsystem returns one of these kinds rather than
// an ad-hoc error so callers and the audit log can classify failures
// uniformly.
package guarderr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories. New kinds require a
// spec change, not an ad-hoc string.
type Kind string

const (
	// Integrity/security — hard-stop, never swallowed.
	KindIdentifierInvalid      Kind = "IdentifierInvalid"
	KindPathTraversal          Kind = "PathTraversal"
	KindUnredactedEvidence     Kind = "UnredactedEvidence"
	KindTokenTampered          Kind = "TokenTampered"
	KindReplayAttempt          Kind = "ReplayAttempt"
	KindAuditIntegrity         Kind = "AuditIntegrity"
	KindHashChainMismatch      Kind = "HashChainMismatch"
	KindForbiddenAction        Kind = "ForbiddenAction"
	KindArchitecturalViolation Kind = "ArchitecturalViolation"
	KindGovernanceViolation    Kind = "GovernanceViolation"
	KindConfigurationError     Kind = "ConfigurationError"

	// Authorization.
	KindInsufficientPermission   Kind = "InsufficientPermission"
	KindHumanConfirmationRequired Kind = "HumanConfirmationRequired"
	KindTokenExpired              Kind = "TokenExpired"

	// State.
	KindInvalidTransition   Kind = "InvalidTransition"
	KindDuplicateSubmission Kind = "DuplicateSubmission"

	// External/operational — recoverable within the confirmation's lifetime.
	KindBrowserCrash      Kind = "BrowserCrash"
	KindNavigationFailure Kind = "NavigationFailure"
	KindCSPBlock          Kind = "CSPBlock"
	KindPartialEvidence   Kind = "PartialEvidence"
	KindRetryExhausted    Kind = "RetryExhausted"
	KindResponseValidation Kind = "ResponseValidation"
)

// hardStop marks kinds that must never be downgraded or swallowed by a
// recovery/retry shim — they propagate to the caller unchanged.
var hardStop = map[Kind]bool{
	KindIdentifierInvalid:      true,
	KindPathTraversal:          true,
	KindUnredactedEvidence:     true,
	KindTokenTampered:          true,
	KindReplayAttempt:          true,
	KindAuditIntegrity:         true,
	KindHashChainMismatch:      true,
	KindForbiddenAction:        true,
	KindArchitecturalViolation: true,
	KindGovernanceViolation:    true,
	KindConfigurationError:     true,
}

// IsHardStop reports whether k must never be swallowed by recovery logic.
func (k Kind) IsHardStop() bool { return hardStop[k] }

// Error wraps a Kind with a human-readable message and optional cause.
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

// Is supports errors.Is(err, guarderr.New(kind, "")) comparisons by kind
// alone, ignoring message and cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
