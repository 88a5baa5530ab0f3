package attendance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err   error
		kind  Kind
		input bool
	}{
		{err: nil, kind: ""},
		{err: biometric.ErrNoFaceDetected, kind: KindNoFace, input: true},
		{err: fmt.Errorf("extract: %w", biometric.ErrMultipleFacesDetected), kind: KindMultipleFaces, input: true},
		{err: biometric.ErrLowQuality, kind: KindLowQuality, input: true},
		{err: biometric.ErrDimensionMismatch, kind: KindDimensionMismatch, input: true},
		{err: fmt.Errorf("%w: S1", ErrIdentityNotFound), kind: KindIdentityNotFound, input: true},
		{err: ErrInvalidSample, kind: KindInvalidInput, input: true},
		{err: ErrInvalidRequest, kind: KindInvalidInput, input: true},
		{err: ErrInvalidPeriod, kind: KindInvalidInput, input: true},
		{err: ErrInvalidExpected, kind: KindInvalidInput, input: true},
		{err: fmt.Errorf("%w: ledger: %w", ErrUnavailable, database.ErrUnavailable), kind: KindUnavailable},
		{err: biometric.ErrExtractorUnavailable, kind: KindUnavailable},
		{err: context.DeadlineExceeded, kind: KindUnavailable},
		{err: context.Canceled, kind: KindUnavailable},
		{err: errors.New("boom"), kind: KindInternal},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			kind := KindOf(tt.err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.input, kind.IsInput())
		})
	}
}
