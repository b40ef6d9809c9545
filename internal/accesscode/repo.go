package accesscode

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"learncenter/internal/apperr"
	"learncenter/internal/store"
)

const codeColumns = `id, course_id, code, max_uses, used_count, expires_at, created_by, created_at`

// Repository persists access codes in Postgres.
type Repository struct {
	db *sqlx.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertCode(ctx context.Context, c Code) (Code, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO course_access_codes (id, course_id, code, max_uses, used_count, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
	`, c.ID, c.CourseID, c.Code, c.MaxUses, c.ExpiresAt, c.CreatedBy, c.CreatedAt)
	if store.IsUniqueViolation(err) {
		return Code{}, apperr.Conflict("access code %s already exists", c.Code)
	}
	return c, errors.Wrap(err, "insert access code")
}

func (r *Repository) ListCodes(ctx context.Context, f ListFilter, now time.Time) ([]Code, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if f.CourseID != "" {
		args = append(args, f.CourseID)
		where += " AND course_id = $" + strconv.Itoa(len(args))
	}
	switch f.State {
	case StateRedeemed:
		where += " AND used_count >= max_uses"
	case StateExpired:
		args = append(args, now)
		where += " AND used_count < max_uses AND expires_at IS NOT NULL AND expires_at <= $" + strconv.Itoa(len(args))
	case StateUnused:
		args = append(args, now)
		where += " AND used_count < max_uses AND (expires_at IS NULL OR expires_at > $" + strconv.Itoa(len(args)) + ")"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM course_access_codes`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count access codes")
	}

	query := `SELECT ` + codeColumns + ` FROM course_access_codes` + where +
		` ORDER BY created_at DESC, code LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	res := []Code{}
	if err := r.db.SelectContext(ctx, &res, query, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "select access codes")
	}
	return res, total, nil
}

func (r *Repository) DeleteCode(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("access code %s not found", id)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_access_codes WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete access code")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("access code %s not found", id)
	}
	return nil
}

func (r *Repository) DeleteCodes(ctx context.Context, ids []string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM course_access_codes WHERE id IN (?)`, valid)
	if err != nil {
		return 0, errors.Wrap(err, "build bulk delete")
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "bulk delete access codes")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "bulk delete rows affected")
}

// Redeem locks the code row so concurrent redemptions of a single-use code
// serialize and only one wins.
func (r *Repository) Redeem(ctx context.Context, userID, code string, now time.Time) (Redemption, error) {
	var red Redemption
	err := store.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var c Code
		err := tx.GetContext(ctx, &c, `SELECT `+codeColumns+` FROM course_access_codes WHERE code = $1 FOR UPDATE`, code)
		if store.IsNoRows(err) {
			return apperr.NotFound("access code %s not found", code)
		}
		if err != nil {
			return errors.Wrap(err, "lock access code")
		}

		var redeemed, access bool
		if err := tx.GetContext(ctx, &redeemed,
			`SELECT EXISTS (SELECT 1 FROM code_redemptions WHERE code_id = $1 AND user_id = $2)`, c.ID, userID); err != nil {
			return errors.Wrap(err, "check redemption")
		}
		if err := tx.GetContext(ctx, &access,
			`SELECT EXISTS (SELECT 1 FROM course_access WHERE user_id = $1 AND course_id = $2)`, userID, c.CourseID); err != nil {
			return errors.Wrap(err, "check course access")
		}
		if err := CheckRedeemable(c, now, redeemed, access); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE course_access_codes SET used_count = used_count + 1 WHERE id = $1`, c.ID); err != nil {
			return errors.Wrap(err, "increment used count")
		}
		red = Redemption{CodeID: c.ID, UserID: userID, CourseID: c.CourseID, RedeemedAt: now}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO code_redemptions (code_id, user_id, course_id, redeemed_at)
			VALUES ($1, $2, $3, $4)
		`, red.CodeID, red.UserID, red.CourseID, red.RedeemedAt); err != nil {
			return errors.Wrap(err, "insert redemption")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO course_access (user_id, course_id, code_id, granted_at)
			VALUES ($1, $2, $3, $4)
		`, userID, c.CourseID, c.ID, now)
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("user already has access to course %s", c.CourseID)
		}
		return errors.Wrap(err, "grant course access")
	})
	if err != nil {
		return Redemption{}, err
	}
	return red, nil
}

func (r *Repository) HasAccess(ctx context.Context, userID, courseID string) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM course_access WHERE user_id = $1 AND course_id = $2)`, userID, courseID)
	return ok, errors.Wrap(err, "check course access")
}

func (r *Repository) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM course_access_codes WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, errors.Wrap(err, "purge expired access codes")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "purge rows affected")
}
