package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"learncenter/internal/apperr"
	"learncenter/internal/attendance"
)

type attendanceStore struct {
	db *DB
}

// NewAttendanceStore returns attendance records backed by db.
func NewAttendanceStore(db *DB) attendance.Store {
	return &attendanceStore{db: db}
}

func (s *attendanceStore) InsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.forContext(rec.UserID, rec.Day, rec.ContextKey) != nil {
		return attendance.Record{}, apperr.Conflict("attendance already recorded for this user, day and context")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.db.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.db.records[rec.ID] = &rec
	return rec, nil
}

func (s *attendanceStore) RecordForContext(ctx context.Context, userID string, day time.Time, contextKey string) (*attendance.Record, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if rec := s.forContext(userID, day, contextKey); rec != nil {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (s *attendanceStore) forContext(userID string, day time.Time, contextKey string) *attendance.Record {
	for _, rec := range s.db.records {
		if rec.UserID == userID && rec.Day.Equal(day) && rec.ContextKey == contextKey {
			return rec
		}
	}
	return nil
}

func (s *attendanceStore) GetRecord(ctx context.Context, id string) (attendance.Record, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if rec, ok := s.db.records[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, apperr.NotFound("attendance record %s not found", id)
}

func (s *attendanceStore) UpdateRecord(ctx context.Context, id string, upd attendance.Update) (attendance.Record, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec, ok := s.db.records[id]
	if !ok {
		return attendance.Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.Note != nil {
		rec.Note = *upd.Note
	}
	if upd.Location != nil {
		rec.Location = *upd.Location
	}
	rec.UpdatedAt = s.db.now().UTC()
	return *rec, nil
}

func (s *attendanceStore) DeleteRecord(ctx context.Context, id string) (attendance.Record, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rec, ok := s.db.records[id]
	if !ok {
		return attendance.Record{}, apperr.NotFound("attendance record %s not found", id)
	}
	delete(s.db.records, id)
	return *rec, nil
}

func (s *attendanceStore) ListRecords(ctx context.Context, f attendance.ListFilter) ([]attendance.Record, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	matched := make([]attendance.Record, 0)
	for _, rec := range s.db.records {
		if !inRange(rec.Day, f.From, f.To) ||
			(f.CourseID != "" && rec.CourseID != f.CourseID) ||
			(f.SessionID != "" && rec.SessionID != f.SessionID) ||
			(f.UserID != "" && rec.UserID != f.UserID) ||
			(f.Status != "" && rec.Status != f.Status) ||
			(f.Type != "" && rec.Type != f.Type) {
			continue
		}
		matched = append(matched, *rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RecordedAt.After(matched[j].RecordedAt) })

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *attendanceStore) CountByStatus(ctx context.Context, f attendance.DashboardFilter) (attendance.Counts, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var c attendance.Counts
	for _, rec := range s.db.records {
		if dashboardMatch(rec, f) {
			addStatus(&c, rec.Status)
		}
	}
	return c, nil
}

func (s *attendanceStore) DailyCounts(ctx context.Context, f attendance.DashboardFilter) ([]attendance.DayCounts, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	byDay := make(map[time.Time]*attendance.DayCounts)
	for _, rec := range s.db.records {
		if !dashboardMatch(rec, f) {
			continue
		}
		dc, ok := byDay[rec.Day]
		if !ok {
			dc = &attendance.DayCounts{Day: rec.Day}
			byDay[rec.Day] = dc
		}
		addStatus(&dc.Counts, rec.Status)
	}
	out := make([]attendance.DayCounts, 0, len(byDay))
	for _, dc := range byDay {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func dashboardMatch(rec *attendance.Record, f attendance.DashboardFilter) bool {
	return inRange(rec.Day, f.From, f.To) && (f.CourseID == "" || rec.CourseID == f.CourseID)
}

func inRange(day, from, to time.Time) bool {
	if !from.IsZero() && day.Before(from) {
		return false
	}
	if !to.IsZero() && day.After(to) {
		return false
	}
	return true
}

func addStatus(c *attendance.Counts, st attendance.Status) {
	switch st {
	case attendance.StatusPresent:
		c.Present++
	case attendance.StatusLate:
		c.Late++
	case attendance.StatusAbsent:
		c.Absent++
	}
}
