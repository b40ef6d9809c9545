package attendance

import (
	"context"
	"math"
	"time"

	"learncenter/internal/apperr"
)

// DashboardFilter selects the records a summary covers. From and To are
// inclusive calendar days; a zero value leaves that end open.
type DashboardFilter struct {
	From        time.Time
	To          time.Time
	CourseID    string
	IncludeRate bool
	Daily       bool
}

// Summary is the dashboard aggregate.
type Summary struct {
	Present        int          `json:"present"`
	Late           int          `json:"late"`
	Absent         int          `json:"absent"`
	Total          int          `json:"total"`
	AttendanceRate *int         `json:"attendance_rate,omitempty"`
	Days           []DaySummary `json:"days,omitempty"`
}

// DaySummary is one entry of the per-day breakdown.
type DaySummary struct {
	Day     string `json:"day"`
	Present int    `json:"present"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
	Total   int    `json:"total"`
}

// Rate is present/total as a rounded percentage, 0 when total is 0.
func Rate(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) * 100 / float64(total)))
}

// Dashboard computes attendance aggregates. It has no side effects.
type Dashboard struct {
	store Store
}

// NewDashboard creates an aggregator over store.
func NewDashboard(store Store) *Dashboard {
	return &Dashboard{store: store}
}

// Summary counts present, late and absent records matching f.
func (d *Dashboard) Summary(ctx context.Context, f DashboardFilter) (Summary, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Summary{}, apperr.Validation("date range ends before it starts")
	}
	counts, err := d.store.CountByStatus(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Present: counts.Present,
		Late:    counts.Late,
		Absent:  counts.Absent,
		Total:   counts.Total(),
	}
	if f.IncludeRate {
		rate := Rate(s.Present, s.Total)
		s.AttendanceRate = &rate
	}
	if f.Daily {
		days, err := d.store.DailyCounts(ctx, f)
		if err != nil {
			return Summary{}, err
		}
		s.Days = make([]DaySummary, 0, len(days))
		for _, dc := range days {
			s.Days = append(s.Days, DaySummary{
				Day:     dc.Day.Format(DayLayout),
				Present: dc.Present,
				Late:    dc.Late,
				Absent:  dc.Absent,
				Total:   dc.Total(),
			})
		}
	}
	return s, nil
}
