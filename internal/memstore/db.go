// Package memstore keeps every store in process memory. It backs
// STORE_BACKEND=memory and serves as the test double for the services.
package memstore

import (
	"sync"
	"time"

	"learncenter/internal/accesscode"
	"learncenter/internal/attendance"
	"learncenter/internal/exam"
	"learncenter/internal/user"
)

type (
	// DB holds all tables behind one lock, so multi-table writes such as a
	// redemption are atomic.
	DB struct {
		mu sync.RWMutex

		users         map[string]*user.User
		refreshTokens map[string]*refreshToken
		records       map[string]*attendance.Record
		exams         map[string]*exam.Exam
		attempts      map[string]*exam.Attempt
		codes         map[string]*accesscode.Code
		redemptions   map[redemptionKey]accesscode.Redemption
		access        map[accessKey]time.Time

		now func() time.Time
	}

	refreshToken struct {
		userID    string
		expiresAt time.Time
		revoked   bool
	}

	redemptionKey struct{ codeID, userID string }
	accessKey     struct{ userID, courseID string }
)

// Open returns an empty database.
func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		refreshTokens: make(map[string]*refreshToken),
		records:       make(map[string]*attendance.Record),
		exams:         make(map[string]*exam.Exam),
		attempts:      make(map[string]*exam.Attempt),
		codes:         make(map[string]*accesscode.Code),
		redemptions:   make(map[redemptionKey]accesscode.Redemption),
		access:        make(map[accessKey]time.Time),
		now:           time.Now,
	}
}
