package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/biometric"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxRequestBody bounds JSON bodies; base64 face images make them large.
const maxRequestBody = 16 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  attendance.Kind `json:"kind"`
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind attendance.Kind) int {
	switch kind {
	case attendance.KindNoFace, attendance.KindMultipleFaces, attendance.KindLowQuality,
		attendance.KindInvalidInput:
		return http.StatusBadRequest
	case attendance.KindDimensionMismatch:
		return http.StatusUnprocessableEntity
	case attendance.KindIdentityNotFound:
		return http.StatusNotFound
	case attendance.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure classifies err and sends it with its kind. Infrastructure errors
// are logged and replaced by a generic message.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := attendance.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	switch kind {
	case attendance.KindUnavailable:
		message = "service temporarily unavailable, retry later"
	case attendance.KindInternal:
		message = "internal error"
	}
	if !kind.IsInput() {
		log.Printf("%s %s failed: %s", r.Method, r.URL.Path, sanitizeForLog(err.Error()))
	}

	respondJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s", attendance.ErrInvalidRequest, errInvalidRequestBody)
	}
	return nil
}

// decodeSample decodes a base64 or data-URL face image.
func decodeSample(faceImage string) ([]byte, error) {
	if strings.TrimSpace(faceImage) == "" {
		return nil, fmt.Errorf("%w: face_image is required", attendance.ErrInvalidSample)
	}
	data, err := biometric.DecodeBase64Sample(faceImage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", attendance.ErrInvalidSample, err)
	}
	return data, nil
}

// invalidParam reports a malformed query parameter.
func invalidParam(name string, err error) error {
	if errors.Is(err, attendance.ErrInvalidRequest) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", attendance.ErrInvalidRequest, name, err)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
