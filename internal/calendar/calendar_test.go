package calendar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "plain", input: "2024-02-07", want: Date{2024, time.February, 7}},
		{name: "surrounding spaces", input: " 2024-12-31 ", want: Date{2024, time.December, 31}},
		{name: "leap day", input: "2024-02-29", want: Date{2024, time.February, 29}},
		{name: "not a leap year", input: "2023-02-29", wantErr: true},
		{name: "timestamp", input: "2024-02-07T10:00:00Z", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("ParseDate(%q) error = %v, want ErrInvalidDate", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDate_CompareAndShift(t *testing.T) {
	a := NewDate(2024, time.February, 28)
	b := a.AddDays(1)
	c := a.AddDays(2)

	if b != (Date{2024, time.February, 29}) {
		t.Errorf("AddDays(1) = %v", b)
	}
	if c != (Date{2024, time.March, 1}) {
		t.Errorf("AddDays(2) = %v", c)
	}
	if !a.Before(b) || !c.After(b) || a.Compare(a) != 0 {
		t.Error("ordering is inconsistent")
	}
	if NewDate(2023, time.December, 31).Compare(NewDate(2024, time.January, 1)) != -1 {
		t.Error("year boundary ordering is wrong")
	}
}

func TestPeriod(t *testing.T) {
	p := Period{Start: NewDate(2024, time.February, 1), End: NewDate(2024, time.February, 29)}

	if !p.Valid() {
		t.Fatal("expected valid period")
	}
	if p.Days() != 29 {
		t.Errorf("Days() = %d, want 29", p.Days())
	}
	if !p.Contains(p.Start) || !p.Contains(p.End) {
		t.Error("period bounds must be inclusive")
	}
	if p.Contains(NewDate(2024, time.March, 1)) {
		t.Error("March 1 must be outside February")
	}

	inverted := Period{Start: p.End, End: p.Start}
	if inverted.Valid() || inverted.Days() != 0 {
		t.Error("inverted period must be invalid with zero days")
	}
}

func TestPolicy_DateOf(t *testing.T) {
	// 23:30 UTC on Feb 7 is already Feb 8 in Prague (UTC+1 in winter).
	instant := time.Date(2024, time.February, 7, 23, 30, 0, 0, time.UTC)

	utc := MustPolicy("UTC")
	if got := utc.DateOf(instant); got != NewDate(2024, time.February, 7) {
		t.Errorf("UTC DateOf = %v, want 2024-02-07", got)
	}

	prague := MustPolicy("Europe/Prague")
	if got := prague.DateOf(instant); got != NewDate(2024, time.February, 8) {
		t.Errorf("Prague DateOf = %v, want 2024-02-08", got)
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("")
	if err != nil {
		t.Fatalf("empty zone should default, got %v", err)
	}
	if p.Name() != DefaultTimezone {
		t.Errorf("Name() = %q, want %q", p.Name(), DefaultTimezone)
	}

	if _, err := NewPolicy("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}

	var zero Policy
	if zero.Location() != time.UTC {
		t.Error("zero policy must behave as UTC")
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Date Date `json:"date"`
	}

	b, err := json.Marshal(wrapper{Date: NewDate(2024, time.February, 7)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"date":"2024-02-07"}` {
		t.Errorf("marshal = %s", b)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"date":"2024-03-01"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Date != NewDate(2024, time.March, 1) {
		t.Errorf("unmarshal = %v", w.Date)
	}

	if err := json.Unmarshal([]byte(`{"date":"yesterday"}`), &w); err == nil {
		t.Error("expected unmarshal error for bad date")
	}
}
