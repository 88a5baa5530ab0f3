package database

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/calendar"
)

// Role tags an identity as a student or a teacher
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// ReferenceTemplate is the enrolled template an identity is verified against.
type ReferenceTemplate struct {
	IdentityID string
	Role       Role
	Template   biometric.Template
	Model      string
	Dim        int
	CreatedAt  time.Time
}

// TemplateStats summarises the directory for index staleness checks
type TemplateStats struct {
	Count           int
	LatestCreatedAt time.Time
}

// Profile holds the metadata used to enrich commit records
type Profile struct {
	IdentityID string    `json:"identity_id"`
	Role       Role      `json:"role"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Source records how a commit was decided
type Source string

const (
	SourceFaceMatch      Source = "face_match"
	SourceManualOverride Source = "manual_override"
)

// Commit is the durable record that an identity was present on a calendar date.
// At most one exists per (IdentityID, CalendarDate).
type Commit struct {
	ID           string        `json:"id"`
	IdentityID   string        `json:"identity_id"`
	IdentityName string        `json:"identity_name,omitempty"`
	CalendarDate calendar.Date `json:"calendar_date"`
	Timestamp    time.Time     `json:"timestamp"`
	Distance     float64       `json:"distance"`
	Location     string        `json:"location,omitempty"`
	Subject      string        `json:"subject,omitempty"`
	Source       Source        `json:"source"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Key returns the uniqueness key of the commit
func (c Commit) Key() CommitKey {
	return CommitKey{IdentityID: c.IdentityID, Date: c.CalendarDate}
}

// CommitKey identifies the single allowed commit of an identity on a date
type CommitKey struct {
	IdentityID string
	Date       calendar.Date
}

// CommitFilter narrows ListCommits. Zero fields do not filter.
type CommitFilter struct {
	IdentityID string
	Start      calendar.Date
	End        calendar.Date
	Source     Source
}

// Matches reports whether c passes the filter
func (f CommitFilter) Matches(c Commit) bool {
	if f.IdentityID != "" && c.IdentityID != f.IdentityID {
		return false
	}
	if !f.Start.IsZero() && c.CalendarDate.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && c.CalendarDate.After(f.End) {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	return true
}
