package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"learncenter/internal/apperr"
	"learncenter/internal/identity"
	"learncenter/internal/logger"
	"learncenter/internal/user"
)

var recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_records_total",
	Help: "Attendance records written, by type and status.",
}, []string{"type", "status"})

// Resolver finds the user an attendance input refers to.
type Resolver interface {
	Resolve(ctx context.Context, ids identity.Identifiers) (user.User, error)
}

// Change describes a write that invalidates dashboards for its day.
type Change struct {
	Action    string `json:"action"`
	RecordID  string `json:"record_id"`
	Day       string `json:"day"`
	CourseID  string `json:"course_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Notifier is told about every successful write.
type Notifier interface {
	AttendanceChanged(ctx context.Context, ch Change) error
}

// RecordInput is one scan or manual attendance action.
type RecordInput struct {
	Identifiers identity.Identifiers
	Type        Type
	CourseID    string
	SessionID   string
	Status      string
	RecordedBy  string
	Note        string
	Location    string
}

// Recorder writes attendance records, rejecting a second record for the
// same user, day and context.
type Recorder struct {
	store    Store
	resolver Resolver
	notifier Notifier
	loc      *time.Location
	log      *logger.Logger
	now      func() time.Time
}

// NewRecorder creates a recorder. Days are computed in loc.
func NewRecorder(store Store, resolver Resolver, notifier Notifier, loc *time.Location, log *logger.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Recorder{store: store, resolver: resolver, notifier: notifier, loc: loc, log: log, now: time.Now}
}

// Record resolves the user and persists one attendance record.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (Record, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.RecordedBy = strings.TrimSpace(in.RecordedBy)
	in.Note = strings.TrimSpace(in.Note)
	in.Location = strings.TrimSpace(in.Location)

	status, err := ParseStatus(in.Status)
	if err != nil {
		return Record{}, err
	}
	typ, err := contextType(in)
	if err != nil {
		return Record{}, err
	}
	if in.RecordedBy == "" {
		return Record{}, apperr.Validation("acting staff member is required")
	}

	u, err := r.resolver.Resolve(ctx, in.Identifiers)
	if err != nil {
		return Record{}, err
	}

	now := r.now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		UserID:     u.ID,
		RecordedBy: in.RecordedBy,
		Type:       typ,
		Status:     status,
		RecordedAt: now,
		Day:        DayOf(now, r.loc),
		ContextKey: ContextKey(typ, in.CourseID, in.SessionID),
		Note:       in.Note,
		Location:   in.Location,
		CourseID:   in.CourseID,
		SessionID:  in.SessionID,
	}

	existing, err := r.store.RecordForContext(ctx, rec.UserID, rec.Day, rec.ContextKey)
	if err != nil {
		return Record{}, err
	}
	if existing != nil {
		return Record{}, apperr.Conflict("attendance already recorded for %s on %s (%s)", u.FullName, rec.DayString(), existing.Status)
	}

	rec, err = r.store.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	recordsTotal.WithLabelValues(string(rec.Type), string(rec.Status)).Inc()
	r.notify(ctx, ActionCreated, rec)
	return rec, nil
}

// Update applies a staff edit to an existing record.
func (r *Recorder) Update(ctx context.Context, id string, status, note, location *string) (Record, error) {
	var upd Update
	if status != nil {
		s, err := ParseStatus(*status)
		if err != nil {
			return Record{}, err
		}
		upd.Status = &s
	}
	if note != nil {
		n := strings.TrimSpace(*note)
		upd.Note = &n
	}
	if location != nil {
		l := strings.TrimSpace(*location)
		upd.Location = &l
	}
	rec, err := r.store.UpdateRecord(ctx, id, upd)
	if err != nil {
		return Record{}, err
	}
	r.notify(ctx, ActionUpdated, rec)
	return rec, nil
}

// Delete removes a record.
func (r *Recorder) Delete(ctx context.Context, id string) error {
	rec, err := r.store.DeleteRecord(ctx, id)
	if err != nil {
		return err
	}
	r.notify(ctx, ActionDeleted, rec)
	return nil
}

// Get returns one record.
func (r *Recorder) Get(ctx context.Context, id string) (Record, error) {
	return r.store.GetRecord(ctx, id)
}

// List returns a page of records, newest first, and the total match count.
func (r *Recorder) List(ctx context.Context, f ListFilter) ([]Record, int, error) {
	f.Normalize()
	return r.store.ListRecords(ctx, f)
}

func (r *Recorder) notify(ctx context.Context, action string, rec Record) {
	if r.notifier == nil {
		return
	}
	ch := Change{
		Action:    action,
		RecordID:  rec.ID,
		Day:       rec.DayString(),
		CourseID:  rec.CourseID,
		SessionID: rec.SessionID,
	}
	if err := r.notifier.AttendanceChanged(ctx, ch); err != nil {
		r.log.Warn("dashboard invalidation failed", err, logger.Fields{"record_id": rec.ID})
	}
}

func contextType(in RecordInput) (Type, error) {
	course := in.CourseID != ""
	session := in.SessionID != ""
	if course && session {
		return "", apperr.Validation("a record belongs to a course or a live session, not both")
	}
	derived := TypeGeneral
	switch {
	case course:
		derived = TypeCourse
	case session:
		derived = TypeLiveSession
	}
	if in.Type == "" || in.Type == derived {
		return derived, nil
	}
	switch in.Type {
	case TypeCourse:
		return "", apperr.Validation("course attendance requires a course id")
	case TypeLiveSession:
		return "", apperr.Validation("live session attendance requires a session id")
	case TypeGeneral:
		return "", apperr.Validation("general attendance takes no course or session id")
	}
	return "", apperr.Validation("attendance type %q is not recognized", in.Type)
}
