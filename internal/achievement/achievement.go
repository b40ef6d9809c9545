// Package achievement is the seam for the achievements collaborator. Only a
// static provider exists today.
package achievement

import (
	"context"
	"time"
)

// Achievement is a badge earned by a user.
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
	EarnedAt    time.Time `json:"earned_at"`
}

// Provider lists a user's achievements.
type Provider interface {
	ForUser(ctx context.Context, userID string) ([]Achievement, error)
}

// Static serves a fixed list to every user.
type Static struct {
	Items []Achievement
}

// ForUser returns a copy of the fixed list, never nil.
func (s Static) ForUser(ctx context.Context, userID string) ([]Achievement, error) {
	out := make([]Achievement, len(s.Items))
	copy(out, s.Items)
	return out, nil
}
