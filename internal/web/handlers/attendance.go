package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/calendar"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// AttendanceHandler handles verification, commit and statistics endpoints
type AttendanceHandler struct {
	engine   *attendance.Engine
	guard    *attendance.Guard
	stats    *attendance.Aggregator
	ledger   database.CommitReader
	profiles database.ProfileReader
	policy   calendar.Policy
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(
	engine *attendance.Engine, guard *attendance.Guard, stats *attendance.Aggregator,
	ledger database.CommitReader, profiles database.ProfileReader,
) *AttendanceHandler {
	return &AttendanceHandler{
		engine:   engine,
		guard:    guard,
		stats:    stats,
		ledger:   ledger,
		profiles: profiles,
		policy:   guard.Policy(),
	}
}

// VerifyRequest represents a 1:1 verification request
type VerifyRequest struct {
	IdentityID string `json:"identity_id"`
	FaceImage  string `json:"face_image"`
}

// MarkRequest represents a verify-and-commit request. IdentityID is ignored by Identify.
type MarkRequest struct {
	IdentityID string `json:"identity_id"`
	FaceImage  string `json:"face_image"`
	Location   string `json:"location"`
	Subject    string `json:"subject"`
}

// ManualCommitRequest represents a manual override
type ManualCommitRequest struct {
	IdentityID string `json:"identity_id"`
	Date       string `json:"date"`      // YYYY-MM-DD, optional
	Timestamp  string `json:"timestamp"` // RFC 3339, optional, wins over date
	Location   string `json:"location"`
	Subject    string `json:"subject"`
	Reason     string `json:"reason"`
}

// MarkResponse represents the outcome of a commit attempt
type MarkResponse struct {
	Status       attendance.CommitStatus        `json:"status"`
	Message      string                         `json:"message"`
	Verification *attendance.VerificationResult `json:"verification,omitempty"`
	Commit       *database.Commit               `json:"commit,omitempty"`
}

// RecordsResponse lists ledger commits
type RecordsResponse struct {
	Records []database.Commit `json:"records"`
	Count   int               `json:"count"`
}

// StatisticsResponse lists per-identity snapshots
type StatisticsResponse struct {
	PeriodStart calendar.Date         `json:"period_start"`
	PeriodEnd   calendar.Date         `json:"period_end"`
	Statistics  []attendance.Snapshot `json:"statistics"`
}

// Verify compares a face against the claimed identity without committing
func (h *AttendanceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	sample, err := decodeSample(req.FaceImage)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	result, err := h.engine.Verify(r.Context(), req.IdentityID, sample)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Mark verifies the claimed identity and commits attendance on a match
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	sample, err := decodeSample(req.FaceImage)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	result, err := h.engine.Verify(r.Context(), req.IdentityID, sample)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	h.commit(w, r, result, req.Location, req.Subject)
}

// Identify finds who the face belongs to and commits attendance on a match
func (h *AttendanceHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req MarkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}
	sample, err := decodeSample(req.FaceImage)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	result, err := h.engine.Identify(r.Context(), sample)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	h.commit(w, r, result, req.Location, req.Subject)
}

func (h *AttendanceHandler) commit(w http.ResponseWriter, r *http.Request, result attendance.VerificationResult, location, subject string) {
	outcome, err := h.guard.TryCommit(r.Context(), result, location, subject)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondOutcome(w, outcome, &result)
}

// Manual records attendance decided by an operator
func (h *AttendanceHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req ManualCommitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondFailure(w, r, err)
		return
	}

	at, err := h.manualTime(req)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	outcome, err := h.guard.CommitManual(r.Context(), attendance.ManualRequest{
		IdentityID: req.IdentityID,
		At:         at,
		Location:   req.Location,
		Subject:    req.Subject,
		Reason:     req.Reason,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	if operator := middleware.GetOperatorFromContext(r.Context()); operator != "" {
		log.Printf("manual commit for %s by %s: %s", sanitizeForLog(req.IdentityID),
			sanitizeForLog(operator), outcome.Status)
	}
	respondOutcome(w, outcome, nil)
}

// manualTime resolves the commit instant. A bare date is pinned to noon in the
// attendance zone so it always falls on that calendar day.
func (h *AttendanceHandler) manualTime(req ManualCommitRequest) (time.Time, error) {
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, invalidParam("timestamp", err)
		}
		return t, nil
	}
	if d := strings.TrimSpace(req.Date); d != "" {
		date, err := calendar.ParseDate(d)
		if err != nil {
			return time.Time{}, invalidParam("date", err)
		}
		return date.Midnight(h.policy.Location()).Add(12 * time.Hour), nil
	}
	return time.Time{}, nil
}

func respondOutcome(w http.ResponseWriter, outcome attendance.CommitOutcome, result *attendance.VerificationResult) {
	resp := MarkResponse{
		Status:       outcome.Status,
		Verification: result,
		Commit:       outcome.Commit,
	}

	status := http.StatusCreated
	switch outcome.Status {
	case attendance.StatusCommitted:
		resp.Message = fmt.Sprintf("attendance recorded for %s", outcome.Commit.IdentityID)
	case attendance.StatusDuplicate:
		status = http.StatusConflict
		resp.Message = fmt.Sprintf("attendance already recorded on %s at %s",
			outcome.Commit.CalendarDate, outcome.Commit.Timestamp.Format(time.RFC3339))
	case attendance.StatusNoMatch:
		status = http.StatusUnauthorized
		resp.Message = "face does not match"
	}
	respondJSON(w, status, resp)
}

// Records lists commits filtered by identity, period and source
func (h *AttendanceHandler) Records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := parsePeriod(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	filter := database.CommitFilter{
		IdentityID: strings.TrimSpace(q.Get("identity_id")),
		Start:      start,
		End:        end,
	}
	switch src := database.Source(q.Get("source")); src {
	case "":
	case database.SourceFaceMatch, database.SourceManualOverride:
		filter.Source = src
	default:
		respondFailure(w, r, fmt.Errorf("%w: unknown source %q", attendance.ErrInvalidRequest, src))
		return
	}

	records, err := h.ledger.ListCommits(r.Context(), filter)
	if err != nil {
		respondFailure(w, r, storeFailure(err))
		return
	}
	if records == nil {
		records = []database.Commit{}
	}
	respondJSON(w, http.StatusOK, RecordsResponse{Records: records, Count: len(records)})
}

// Statistics returns one snapshot for identity_id, or one per identity otherwise.
// The period defaults to the current month up to today.
func (h *AttendanceHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, end, err := parsePeriod(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if end.IsZero() {
		end = h.policy.Today()
	}
	if start.IsZero() {
		start = calendar.NewDate(end.Year, end.Month, 1)
	}
	period := calendar.Period{Start: start, End: end}

	expected := 0
	if s := q.Get("expected"); s != "" {
		if expected, err = strconv.Atoi(s); err != nil {
			respondFailure(w, r, invalidParam("expected", err))
			return
		}
	}

	if id := strings.TrimSpace(q.Get("identity_id")); id != "" {
		snap, err := h.stats.Summarize(r.Context(), id, period, expected)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, snap)
		return
	}

	roster, err := h.roster(r, database.Role(q.Get("role")))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	snaps, err := h.stats.SummarizeAll(r.Context(), period, attendance.FixedExpectation(expected), roster)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatisticsResponse{PeriodStart: start, PeriodEnd: end, Statistics: snaps})
}

func (h *AttendanceHandler) roster(r *http.Request, role database.Role) ([]string, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", attendance.ErrInvalidRequest, role)
	}
	if h.profiles == nil {
		return nil, nil
	}
	profiles, err := h.profiles.ListProfiles(r.Context(), role)
	if err != nil {
		return nil, storeFailure(err)
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.IdentityID)
	}
	return ids, nil
}

// Summary lists everyone present on a date (default today)
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	date := h.policy.Today()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			respondFailure(w, r, invalidParam("date", err))
			return
		}
		date = d
	}

	summary, err := h.stats.Daily(r.Context(), date)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func parsePeriod(startStr, endStr string) (start, end calendar.Date, err error) {
	if startStr != "" {
		if start, err = calendar.ParseDate(startStr); err != nil {
			return start, end, invalidParam("start_date", err)
		}
	}
	if endStr != "" {
		if end, err = calendar.ParseDate(endStr); err != nil {
			return start, end, invalidParam("end_date", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("%w: %s > %s", attendance.ErrInvalidPeriod, start, end)
	}
	return start, end, nil
}

// storeFailure marks a direct store read failure as unavailable.
func storeFailure(err error) error {
	if attendance.KindOf(err) == attendance.KindInternal {
		return fmt.Errorf("%w: %w", attendance.ErrUnavailable, err)
	}
	return err
}
