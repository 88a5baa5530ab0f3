package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

// testImage is what every test kiosk sends; the fake extractor ignores its content.
var testImage = base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

// testNow is the frozen clock of the test services.
var testNow = time.Date(2024, 2, 7, 8, 0, 0, 0, time.UTC)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Matching:   config.MatchingConfig{Threshold: 0.6, MinDetScore: 0.5, MinFaceSize: 20, Model: "test"},
		Attendance: config.AttendanceConfig{Timezone: "UTC"},
		Embedding:  config.EmbeddingConfig{Dim: 4},
		Web:        config.WebConfig{Host: "127.0.0.1", Port: 8080},
	}
}

// testEnv wires the attendance services over in-memory stores.
type testEnv struct {
	backend   *database.Backend
	templates *mock.MockTemplateStore
	profiles  *mock.MockProfileStore
	ledger    *mock.MockLedger

	probe biometric.Template // returned by the fake extractor
	err   error              // returned by the fake extractor instead of probe

	attendance *AttendanceHandler
	identities *IdentitiesHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, templates, profiles, ledger := mock.NewBackend()
	env := &testEnv{
		backend:   backend,
		templates: templates,
		profiles:  profiles,
		ledger:    ledger,
		probe:     biometric.Template{0.1, 0, 0, 0},
	}

	extractor := biometric.ExtractorFunc(func(ctx context.Context, sample []byte) (biometric.Template, error) {
		if env.err != nil {
			return nil, env.err
		}
		return env.probe.Clone(), nil
	})

	opts := []attendance.Option{
		attendance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		attendance.WithClock(func() time.Time { return testNow }),
		attendance.WithIndex(backend.Index),
	}
	engine := attendance.NewEngine(extractor, templates, 0.6, opts...)
	guard := attendance.NewGuard(ledger, profiles, calendar.MustPolicy("UTC"), opts...)
	stats := attendance.NewAggregator(ledger, profiles, opts...)
	enroller := attendance.NewEnroller(extractor, templates, profiles, "test", 4, opts...)

	env.attendance = NewAttendanceHandler(engine, guard, stats, ledger, profiles)
	env.identities = NewIdentitiesHandler(enroller, profiles)
	return env
}

// enroll registers identityID with the zero template.
func (e *testEnv) enroll(t *testing.T, identityID, name string, role database.Role) {
	t.Helper()
	e.profiles.AddProfile(database.Profile{IdentityID: identityID, Name: name, Role: role})
	ref := database.ReferenceTemplate{IdentityID: identityID, Role: role, Template: biometric.Template{0, 0, 0, 0}}
	e.templates.AddTemplate(ref)
	if err := e.backend.Index.Add(ref); err != nil {
		t.Fatalf("failed to index template: %v", err)
	}
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertErrorKind checks if the response is a JSON error of the expected kind
func assertErrorKind(t *testing.T, recorder *httptest.ResponseRecorder, expected attendance.Kind) {
	t.Helper()
	var result ErrorResponse
	parseJSONResponse(t, recorder, &result)
	if result.Kind != expected {
		t.Errorf("expected kind '%s', got '%s' (error: %s)", expected, result.Kind, result.Error)
	}
	if result.Error == "" {
		t.Error("expected a non-empty error message")
	}
}
