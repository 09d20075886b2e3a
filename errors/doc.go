// Package errors provides standardized error handling patterns for datahub components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing). On top of that it carries the
// hub's administrative result-code taxonomy as Kind, returned from the
// resource tree, sample, and observation packages wherever the external
// interface names a specific code (BAD_PARAMETER, NO_MEMORY, DUPLICATE,
// OVERFLOW, NOT_FOUND, IN_PROGRESS, FAULT).
//
// # Error Classification
//
// Errors are automatically classified based on their type or content:
//
//   - Transient: Network timeouts, connection issues, temporary unavailability (retry recommended)
//   - Invalid: Malformed input, validation failures, bad configuration (do not retry)
//   - Fatal: Resource exhaustion, data corruption, unrecoverable states (stop processing)
//
// # Administrative Kind
//
// A *HubError pairs a Kind with an underlying cause. Success is always a nil
// error, never a Kind value:
//
//	path, err := tree.GetPath(base, entry)
//	if errors.Is(err, errors.KindNotFound) {
//	    // entry is not beneath base
//	}
//
//	var he *errors.HubError
//	if stderrors.As(err, &he) { // stderrors is the standard library "errors"
//	    log.Printf("kind=%s cause=%v", he.Kind, he.Err)
//	}
//
// # Quick Start
//
// Use standard error variables for common conditions:
//
//	if !serviceAvailable {
//	    return errors.ErrConnectionTimeout
//	}
//
// Wrap errors with context for debugging:
//
//	if err := component.Process(data); err != nil {
//	    return errors.Wrap(err, "DataProcessor", "Process", "data validation")
//	}
//
// Check classification for retry logic:
//
//	if err := operation(); err != nil {
//	    if errors.IsTransient(err) {
//	        config := errors.DefaultRetryConfig()
//	        if config.ShouldRetry(err, attempt) {
//	            // retry operation
//	        }
//	    } else if errors.IsFatal(err) {
//	        log.Fatalf("unrecoverable error: %v", err)
//	    }
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// # Integration with errors.As/Is
//
// This package's own Is compares administrative Kinds; matching against
// error values and types goes through the standard library (imported here
// as stderrors):
//
//	var ce *errors.ClassifiedError
//	if stderrors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
//	if stderrors.Is(err, errors.ErrConnectionTimeout) {
//	    // handle timeout specifically
//	}
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are
// automatically classified as Transient.
//
// # Design Philosophy
//
//   - Classification over string matching
//   - Wrapping over replacement
//   - Standards over invention: use Go's error handling idioms (Is/As/Unwrap)
//   - Administrative Kind codes are orthogonal to ErrorClass: Classify and
//     the Is* helpers never consult a HubError's Kind, only the error's
//     type, sentinel values, and message text.
package errors
