package attendance

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"learncenter/internal/apperr"
	"learncenter/internal/store"
)

const recordColumns = `id, user_id, recorded_by, type, status, recorded_at, day, context_key,
	note, location, course_id, session_id, created_at, updated_at`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecord writes a new record. The (user_id, day, context_key) unique
// index turns a concurrent duplicate into a conflict.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO attendance_records
			(id, user_id, recorded_by, type, status, recorded_at, day, context_key, note, location, course_id, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, rec.ID, rec.UserID, rec.RecordedBy, rec.Type, rec.Status, rec.RecordedAt, rec.Day, rec.ContextKey,
		rec.Note, rec.Location, rec.CourseID, rec.SessionID).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, apperr.Conflict("attendance already recorded for this user, day and context")
		}
		return Record{}, errors.Wrap(err, "insert attendance record")
	}
	return rec, nil
}

// RecordForContext returns the record for the duplicate key, or nil.
func (r *Repository) RecordForContext(ctx context.Context, userID string, day time.Time, contextKey string) (*Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE user_id = $1 AND day = $2 AND context_key = $3
	`, userID, day, contextKey)
	if store.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select record for context")
	}
	return &rec, nil
}

// GetRecord returns a single record by id.
func (r *Repository) GetRecord(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	var rec Record
	err := r.db.GetContext(ctx, &rec, `SELECT `+recordColumns+` FROM attendance_records WHERE id = $1`, id)
	if store.IsNoRows(err) {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	return rec, errors.Wrap(err, "select record")
}

// UpdateRecord applies the non-nil fields of upd.
func (r *Repository) UpdateRecord(ctx context.Context, id string, upd Update) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	var status, note, location interface{}
	if upd.Status != nil {
		status = string(*upd.Status)
	}
	if upd.Note != nil {
		note = *upd.Note
	}
	if upd.Location != nil {
		location = *upd.Location
	}
	var rec Record
	err := r.db.GetContext(ctx, &rec, `
		UPDATE attendance_records
		SET status = COALESCE($2, status),
			note = COALESCE($3, note),
			location = COALESCE($4, location),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns, id, status, note, location)
	if store.IsNoRows(err) {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	return rec, errors.Wrap(err, "update record")
}

// DeleteRecord removes a record and returns what was deleted.
func (r *Repository) DeleteRecord(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	var rec Record
	err := r.db.GetContext(ctx, &rec, `DELETE FROM attendance_records WHERE id = $1 RETURNING `+recordColumns, id)
	if store.IsNoRows(err) {
		return Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	return rec, errors.Wrap(err, "delete record")
}

// ListRecords returns records with basic filters.
func (r *Repository) ListRecords(ctx context.Context, f ListFilter) ([]Record, int, error) {
	if f.UserID != "" {
		if _, err := uuid.Parse(f.UserID); err != nil {
			return []Record{}, 0, nil
		}
	}
	w := where{}
	if !f.From.IsZero() {
		w.add("day >= ", f.From)
	}
	if !f.To.IsZero() {
		w.add("day <= ", f.To)
	}
	if f.CourseID != "" {
		w.add("course_id = ", f.CourseID)
	}
	if f.SessionID != "" {
		w.add("session_id = ", f.SessionID)
	}
	if f.UserID != "" {
		w.add("user_id = ", f.UserID)
	}
	if f.Status != "" {
		w.add("status = ", string(f.Status))
	}
	if f.Type != "" {
		w.add("type = ", string(f.Type))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendance_records`+w.sql(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "count records")
	}

	args := append(w.args, f.Limit, f.Offset())
	query := `SELECT ` + recordColumns + ` FROM attendance_records` + w.sql() +
		` ORDER BY recorded_at DESC LIMIT $` + strconv.Itoa(len(w.args)+1) + ` OFFSET $` + strconv.Itoa(len(w.args)+2)

	res := []Record{}
	if err := r.db.SelectContext(ctx, &res, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "select records")
	}
	return res, total, nil
}

type statusCount struct {
	Status Status `db:"status"`
	N      int    `db:"n"`
}

// CountByStatus groups the filtered records by status.
func (r *Repository) CountByStatus(ctx context.Context, f DashboardFilter) (Counts, error) {
	w := dashboardWhere(f)
	var rows []statusCount
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS n FROM attendance_records`+w.sql()+` GROUP BY status`, w.args...); err != nil {
		return Counts{}, errors.Wrap(err, "count by status")
	}
	var c Counts
	for _, row := range rows {
		c.add(row.Status, row.N)
	}
	return c, nil
}

type dayStatusCount struct {
	Day    time.Time `db:"day"`
	Status Status    `db:"status"`
	N      int       `db:"n"`
}

// DailyCounts groups the filtered records by day and status, oldest first.
func (r *Repository) DailyCounts(ctx context.Context, f DashboardFilter) ([]DayCounts, error) {
	w := dashboardWhere(f)
	var rows []dayStatusCount
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT day, status, COUNT(*) AS n FROM attendance_records`+w.sql()+
			` GROUP BY day, status ORDER BY day`, w.args...); err != nil {
		return nil, errors.Wrap(err, "daily counts")
	}
	var out []DayCounts
	for _, row := range rows {
		day := time.Date(row.Day.Year(), row.Day.Month(), row.Day.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(out); n == 0 || !out[n-1].Day.Equal(day) {
			out = append(out, DayCounts{Day: day})
		}
		out[len(out)-1].add(row.Status, row.N)
	}
	return out, nil
}

func dashboardWhere(f DashboardFilter) where {
	w := where{}
	if !f.From.IsZero() {
		w.add("day >= ", f.From)
	}
	if !f.To.IsZero() {
		w.add("day <= ", f.To)
	}
	if f.CourseID != "" {
		w.add("course_id = ", f.CourseID)
	}
	return w
}

// where accumulates AND-ed clauses with positional placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, clause+"$"+strconv.Itoa(len(w.args)))
}

func (w where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
