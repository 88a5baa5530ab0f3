// Package biometric holds face templates, the distance function used to compare them
// and the client for the external embedding server that produces them.
package biometric

import "errors"

// Extraction and comparison failures. Each is a distinct input error; callers must
// be able to tell "no face" from "ambiguous face" from "unreadable image".
var (
	ErrNoFaceDetected        = errors.New("no face detected")
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
	ErrLowQuality            = errors.New("sample quality too low")
	ErrDimensionMismatch     = errors.New("template dimension mismatch")

	// ErrExtractorUnavailable marks transport or server failures of the embedding server.
	ErrExtractorUnavailable = errors.New("extractor unavailable")
)

// DefaultDim is the template length of the dlib ResNet face model.
const DefaultDim = 128

// Template is a fixed-length face embedding. Treat it as immutable.
type Template []float32

// Dim returns the number of components.
func (t Template) Dim() int {
	return len(t)
}

// Clone returns an independent copy.
func (t Template) Clone() Template {
	if t == nil {
		return nil
	}
	out := make(Template, len(t))
	copy(out, t)
	return out
}
