package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/payment"
)

// ShareRepo stores payment shares. The table carries a generated
// active_key column that is unique while a share is pending or authorized,
// which enforces one open share per payer and reservation.
type ShareRepo struct {
	db *sql.DB
}

// NewShareRepo returns a ShareRepo bound to the given database.
func NewShareRepo(db *sql.DB) *ShareRepo { return &ShareRepo{db: db} }

const shareColumns = `id, event_id, court_id, payer_phone, payer_name, seat_position, share_index,
	amount, currency, state, auth_handle, last_reminder_at, note, created_at, updated_at`

// Create inserts a pending share.
func (r *ShareRepo) Create(ctx context.Context, s *model.PaymentShare) error {
	const q = `INSERT INTO payment_shares
	           (id, event_id, court_id, payer_phone, payer_name, seat_position, share_index, amount, currency, state, auth_handle, note)
	           VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.Ref.EventID, s.Ref.CourtID, s.PayerPhone, s.PayerName, s.SeatPosition, s.ShareIndex,
		s.Amount, s.Currency, string(s.State), s.AuthHandle, s.Note)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrDuplicateShare
		}
		return err
	}
	return nil
}

// Get fetches a share by id.
func (r *ShareRepo) Get(ctx context.Context, id string) (*model.PaymentShare, error) {
	q := `SELECT ` + shareColumns + ` FROM payment_shares WHERE id = ? LIMIT 1`
	s, err := scanShare(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, model.ErrShareNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByReservation returns every share of a reservation in share order.
func (r *ShareRepo) ListByReservation(ctx context.Context, eventID string) ([]model.PaymentShare, error) {
	q := `SELECT ` + shareColumns + ` FROM payment_shares WHERE event_id = ? ORDER BY share_index, created_at`
	return r.list(ctx, q, eventID)
}

// ListByState returns shares in state, oldest first.
func (r *ShareRepo) ListByState(ctx context.Context, state model.ShareState) ([]model.PaymentShare, error) {
	q := `SELECT ` + shareColumns + ` FROM payment_shares WHERE state = ? ORDER BY created_at, id`
	return r.list(ctx, q, string(state))
}

// Transition is a compare-and-set on the state column.
func (r *ShareRepo) Transition(ctx context.Context, id string, from, to model.ShareState, c payment.Change) error {
	const q = `UPDATE payment_shares
	           SET state = ?,
	               auth_handle = IF(? = '', auth_handle, ?),
	               note = IF(? = '', note, ?),
	               updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND state = ?`
	res, err := r.db.ExecContext(ctx, q, string(to), c.AuthHandle, c.AuthHandle, c.Note, c.Note, id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Zero rows: either the share is gone or it already moved on.
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.State == to && from == to {
		// MySQL reports zero affected rows when nothing changed.
		return nil
	}
	return fmt.Errorf("%w: share %s is %s, expected %s", model.ErrShareState, id, cur.State, from)
}

// Reprice updates the amount of a pending share.
func (r *ShareRepo) Reprice(ctx context.Context, id string, amount int64) error {
	const q = `UPDATE payment_shares SET amount = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND state = 'PENDING'`
	res, err := r.db.ExecContext(ctx, q, amount, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrShareState
	}
	return nil
}

// MarkReminded records when the payer was last reminded.
func (r *ShareRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE payment_shares SET last_reminder_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, at.UTC(), id)
	return err
}

func (r *ShareRepo) list(ctx context.Context, q string, args ...any) ([]model.PaymentShare, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PaymentShare
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanShare(sc scanner) (*model.PaymentShare, error) {
	var (
		s        model.PaymentShare
		state    string
		reminded sql.NullTime
	)
	err := sc.Scan(&s.ID, &s.Ref.EventID, &s.Ref.CourtID, &s.PayerPhone, &s.PayerName, &s.SeatPosition, &s.ShareIndex,
		&s.Amount, &s.Currency, &state, &s.AuthHandle, &reminded, &s.Note, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.State = model.ShareState(state)
	if reminded.Valid {
		t := reminded.Time
		s.LastReminderAt = &t
	}
	return &s, nil
}
