package attendance

import (
	"context"
	"errors"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	// ErrIdentityNotFound means the claimed identity has no enrollment. It is an
	// operational error and never reported as a biometric mismatch.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrUnavailable marks transient directory or ledger failures. The caller may
	// retry the whole request; nothing is retried internally.
	ErrUnavailable = errors.New("service temporarily unavailable")

	ErrInvalidSample   = errors.New("invalid sample")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidPeriod   = errors.New("invalid period: end before start")
	ErrInvalidExpected = errors.New("invalid expected count: must not be negative")
)

// Kind classifies an error at the contract boundary.
type Kind string

const (
	KindNoFace            Kind = "no_face"
	KindMultipleFaces     Kind = "multiple_faces"
	KindLowQuality        Kind = "low_quality"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindIdentityNotFound  Kind = "identity_not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

// KindOf maps an error to its kind. Input kinds are checked before infrastructure
// kinds so that a wrapped chain never downgrades a caller mistake into an outage.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, biometric.ErrNoFaceDetected):
		return KindNoFace
	case errors.Is(err, biometric.ErrMultipleFacesDetected):
		return KindMultipleFaces
	case errors.Is(err, biometric.ErrLowQuality):
		return KindLowQuality
	case errors.Is(err, biometric.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrIdentityNotFound):
		return KindIdentityNotFound
	case errors.Is(err, ErrInvalidSample),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidPeriod),
		errors.Is(err, ErrInvalidExpected):
		return KindInvalidInput
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, biometric.ErrExtractorUnavailable),
		errors.Is(err, database.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// IsInput reports whether the kind is a caller-side error that must not be logged as a failure.
func (k Kind) IsInput() bool {
	switch k {
	case KindNoFace, KindMultipleFaces, KindLowQuality, KindDimensionMismatch,
		KindIdentityNotFound, KindInvalidInput:
		return true
	}
	return false
}
