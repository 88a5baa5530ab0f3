package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentitiesHandler handles enrollment and profile lookups
type IdentitiesHandler struct {
	enroller *attendance.Enroller
	profiles database.ProfileReader
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(enroller *attendance.Enroller, profiles database.ProfileReader) *IdentitiesHandler {
	return &IdentitiesHandler{
		enroller: enroller,
		profiles: profiles,
	}
}

// EnrollRequest represents an enrollment request
type EnrollRequest struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
	Name       string `json:"name"`
	Department string `json:"department"`
	FaceImage  string `json:"face_image"`
}

// ProfilesResponse lists profiles
type ProfilesResponse struct {
	Identities []database.Profile `json:"identities"`
	Count      int                `json:"count"`
}

// Create enrolls an identity, replacing its reference template if it exists
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	sample, err := decodeSample(req.FaceImage)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	profile, err := h.enroller.Enroll(r.Context(), attendance.EnrollRequest{
		IdentityID: req.IdentityID,
		Role:       database.Role(req.Role),
		Name:       req.Name,
		Department: req.Department,
		Sample:     sample,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, profile)
}

// List returns profiles, optionally filtered by role and a diacritics-insensitive name query
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	role := database.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		respondFailure(w, r, fmt.Errorf("%w: unknown role %q", attendance.ErrInvalidRequest, role))
		return
	}

	profiles, err := h.profiles.ListProfiles(r.Context(), role)
	if err != nil {
		respondFailure(w, r, storeFailure(err))
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		profiles = database.FilterProfilesByName(profiles, q)
	}
	if profiles == nil {
		profiles = []database.Profile{}
	}
	respondJSON(w, http.StatusOK, ProfilesResponse{Identities: profiles, Count: len(profiles)})
}

// Get returns a single profile
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.profiles.GetProfile(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondFailure(w, r, fmt.Errorf("%w: %s", attendance.ErrIdentityNotFound, id))
		return
	}
	if err != nil {
		respondFailure(w, r, storeFailure(err))
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
