// Package emgerrors implements the §7 error taxonomy as typed Go errors.
// Every kind wraps an underlying cause (errors.Unwrap) the way the teacher's
// models.CrawlError does, so callers can still errors.Is/As through to it.
package emgerrors

import (
	"errors"
	"fmt"

	"github.com/clinictrack/emgcore/pkg/models"
)

// Kind enumerates the taxonomy of §7. It is not a type name a caller
// switches on with string comparisons against internal package variables;
// it is the stable, serializable tag attached to every classified error.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindSignature            Kind = "signature"
	KindNotFound             Kind = "not_found"
	KindCorruption           Kind = "file_corruption"
	KindInsufficientDuration Kind = "emg_validation_failure"
	KindProcessingFailure    Kind = "processing_failure"
)

// Error is the single error type the pipeline and orchestrator raise.
// The orchestrator is the only component that classifies and terminates on
// one of these (§7 propagation policy): every lower-level function returns
// one rather than panicking or logging-and-continuing.
type Error struct {
	Kind    Kind
	Stage   string // which component raised it: "c3d", "signal", "contraction", ...
	Message string
	Cause   error

	// CorruptionDetail and ValidationDetail carry the §7 structured payload
	// for their respective Kind. At most one is set, matching Kind. A
	// classifying caller (the orchestrator) fills in whatever the raising
	// site left unset (e.g. Filename) before persisting.
	CorruptionDetail *models.CorruptionDetail
	ValidationDetail *models.EMGValidationFail
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCorruptionDetail attaches the §7 structured file_corruption payload.
func (e *Error) WithCorruptionDetail(d *models.CorruptionDetail) *Error {
	e.CorruptionDetail = d
	return e
}

// WithValidationDetail attaches the §7 structured emg_validation_failure
// payload (e.g. actual_samples / min_samples_required for Scenario C).
func (e *Error) WithValidationDetail(d *models.EMGValidationFail) *Error {
	e.ValidationDetail = d
	return e
}

func New(kind Kind, stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

func Corrupt(stage, message string, cause error) *Error {
	return New(KindCorruption, stage, message, cause)
}

func UnsupportedFormat(stage, message string, cause error) *Error {
	return New(KindCorruption, stage, "unsupported format: "+message, cause)
}

func InsufficientDuration(stage, message string, cause error) *Error {
	return New(KindInsufficientDuration, stage, message, cause)
}

func InsufficientBandwidth(stage, message string) *Error {
	return New(KindProcessingFailure, stage, "insufficient bandwidth: "+message, nil)
}

func NoRawSignal(stage, channel string) *Error {
	return New(KindProcessingFailure, stage, "no raw signal for channel "+channel, nil)
}

func Validation(stage, message string) *Error {
	return New(KindValidation, stage, message, nil)
}

func Signature(stage, message string) *Error {
	return New(KindSignature, stage, message, nil)
}

func NotFound(stage, message string) *Error {
	return New(KindNotFound, stage, message, nil)
}

func Processing(stage, message string, cause error) *Error {
	return New(KindProcessingFailure, stage, message, cause)
}

// As is a convenience wrapper over errors.As for the common case.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the taxonomy kind of err, or "" if err is not (or does not
// wrap) an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}
