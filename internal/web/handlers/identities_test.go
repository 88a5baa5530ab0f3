package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestIdentitiesHandler_Create(t *testing.T) {
	env := newTestEnv(t)

	recorder := httptest.NewRecorder()
	env.identities.Create(recorder, jsonRequest(t, "POST", "/api/v1/identities", EnrollRequest{
		IdentityID: "S1",
		Role:       "student",
		Name:       "Alžběta Nováková",
		Department: "3.B",
		FaceImage:  "data:image/jpeg;base64," + testImage,
	}))

	assertStatusCode(t, recorder, http.StatusCreated)
	var profile database.Profile
	parseJSONResponse(t, recorder, &profile)
	if profile.IdentityID != "S1" || profile.Role != database.RoleStudent {
		t.Errorf("unexpected profile %+v", profile)
	}

	if _, err := env.templates.GetTemplate(t.Context(), "S1"); err != nil {
		t.Errorf("expected stored template: %v", err)
	}
	if env.backend.Index.Count() != 1 {
		t.Errorf("expected the template to be indexed, got %d", env.backend.Index.Count())
	}
}

func TestIdentitiesHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name         string
		body         EnrollRequest
		extractorErr error
		probe        biometric.Template
		expected     int
		kind         attendance.Kind
	}{
		{"unknown role", EnrollRequest{IdentityID: "S1", Role: "janitor", FaceImage: testImage}, nil, nil, http.StatusBadRequest, attendance.KindInvalidInput},
		{"no face", EnrollRequest{IdentityID: "S1", FaceImage: testImage}, biometric.ErrNoFaceDetected, nil, http.StatusBadRequest, attendance.KindNoFace},
		{"low quality", EnrollRequest{IdentityID: "S1", FaceImage: testImage}, biometric.ErrLowQuality, nil, http.StatusBadRequest, attendance.KindLowQuality},
		{"wrong dimension", EnrollRequest{IdentityID: "S1", FaceImage: testImage}, nil, make(biometric.Template, 8), http.StatusUnprocessableEntity, attendance.KindDimensionMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.err = tc.extractorErr
			if tc.probe != nil {
				env.probe = tc.probe
			}

			recorder := httptest.NewRecorder()
			env.identities.Create(recorder, jsonRequest(t, "POST", "/api/v1/identities", tc.body))

			assertStatusCode(t, recorder, tc.expected)
			assertErrorKind(t, recorder, tc.kind)
		})
	}
}

func TestIdentitiesHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "S1", "Alžběta Nováková", database.RoleStudent)
	env.enroll(t, "S2", "Dan Brown", database.RoleStudent)
	env.enroll(t, "T1", "Petr Novák", database.RoleTeacher)

	tests := []struct {
		name  string
		query string
		ids   []string
	}{
		{"all", "", []string{"S1", "S2", "T1"}},
		{"teachers", "?role=teacher", []string{"T1"}},
		{"diacritics-insensitive search", "?q=novak", []string{"S1", "T1"}},
		{"search within role", "?role=student&q=NOVAKOVA", []string{"S1"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			env.identities.List(recorder, httptest.NewRequest("GET", "/api/v1/identities"+tc.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var resp ProfilesResponse
			parseJSONResponse(t, recorder, &resp)

			var ids []string
			for _, p := range resp.Identities {
				ids = append(ids, p.IdentityID)
			}
			if len(ids) != len(tc.ids) {
				t.Fatalf("expected %v, got %v", tc.ids, ids)
			}
			for i := range ids {
				if ids[i] != tc.ids[i] {
					t.Errorf("expected %v, got %v", tc.ids, ids)
				}
			}
		})
	}
}

func TestIdentitiesHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "S1", "Alice", database.RoleStudent)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/identities/S1", nil), map[string]string{"id": "S1"})
	env.identities.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var profile database.Profile
	parseJSONResponse(t, recorder, &profile)
	if profile.Name != "Alice" {
		t.Errorf("expected 'Alice', got '%s'", profile.Name)
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest("GET", "/api/v1/identities/ghost", nil), map[string]string{"id": "ghost"})
	env.identities.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertErrorKind(t, recorder, attendance.KindIdentityNotFound)
}
