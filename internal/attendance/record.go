package attendance

import (
	"context"
	"strings"
	"time"

	"learncenter/internal/apperr"
)

// Status of a student for one attendance context.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

// ParseStatus accepts one of present, late or absent (case-insensitive).
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPresent, StatusLate, StatusAbsent:
		return s, nil
	}
	return "", apperr.Validation("status %q is not one of present, late, absent", raw)
}

// Type is the kind of context a record is scoped to.
type Type string

const (
	TypeCourse      Type = "course"
	TypeLiveSession Type = "live_session"
	TypeGeneral     Type = "general"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCourse, TypeLiveSession, TypeGeneral:
		return true
	}
	return false
}

// Record is one attendance row.
type Record struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	Type       Type      `db:"type" json:"type"`
	Status     Status    `db:"status" json:"status"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	Day        time.Time `db:"day" json:"-"`
	ContextKey string    `db:"context_key" json:"-"`
	Note       string    `db:"note" json:"note,omitempty"`
	Location   string    `db:"location" json:"location,omitempty"`
	CourseID   string    `db:"course_id" json:"course_id,omitempty"`
	SessionID  string    `db:"session_id" json:"session_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DayString is the record's calendar day as YYYY-MM-DD.
func (r Record) DayString() string { return r.Day.Format(DayLayout) }

// DayLayout is the wire format of calendar days.
const DayLayout = "2006-01-02"

// ContextKey identifies the attendance context for duplicate detection.
func ContextKey(t Type, courseID, sessionID string) string {
	switch t {
	case TypeCourse:
		return "course:" + courseID
	case TypeLiveSession:
		return "live_session:" + sessionID
	}
	return string(TypeGeneral)
}

// DayOf returns the calendar date of ts in loc, as midnight UTC.
func DayOf(ts time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := ts.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	From      time.Time
	To        time.Time
	CourseID  string
	SessionID string
	UserID    string
	Status    Status
	Type      Type
	Page      int
	Limit     int
}

// Normalize applies pagination defaults and bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}

// Offset of the first row on the requested page.
func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

// Update carries a staff edit. Nil fields are left alone.
type Update struct {
	Status   *Status
	Note     *string
	Location *string
}

// Counts per status over some filter.
type Counts struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
}

// Total is always the sum of the three statuses.
func (c Counts) Total() int { return c.Present + c.Late + c.Absent }

func (c *Counts) add(s Status, n int) {
	switch s {
	case StatusPresent:
		c.Present += n
	case StatusLate:
		c.Late += n
	case StatusAbsent:
		c.Absent += n
	}
}

// DayCounts are the counts for one calendar day.
type DayCounts struct {
	Day time.Time
	Counts
}

// Store persists attendance records.
type Store interface {
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	RecordForContext(ctx context.Context, userID string, day time.Time, contextKey string) (*Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	UpdateRecord(ctx context.Context, id string, upd Update) (Record, error)
	DeleteRecord(ctx context.Context, id string) (Record, error)
	ListRecords(ctx context.Context, f ListFilter) ([]Record, int, error)
	CountByStatus(ctx context.Context, f DashboardFilter) (Counts, error)
	DailyCounts(ctx context.Context, f DashboardFilter) ([]DayCounts, error)
}
