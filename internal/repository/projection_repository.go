package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/court-booking/internal/model"
)

// ProjectionRepo mirrors calendar reservations in the reservations table.
// Seats are stored as explicit columns so that "all reservations of phone
// X" is a plain indexed query.
type ProjectionRepo struct {
	db *sql.DB
}

// NewProjectionRepo returns a ProjectionRepo bound to the given database.
func NewProjectionRepo(db *sql.DB) *ProjectionRepo { return &ProjectionRepo{db: db} }

const projectionColumns = `event_id, court_id, short_id, court_name, level, start_at, end_at, state,
	occupied, missing,
	seat1_name, seat1_phone, seat2_name, seat2_phone, seat3_name, seat3_phone, seat4_name, seat4_phone,
	last_update, link_cancel, link_leave, link_invite,
	first_contact_phone, last_contact_phone, audit_note, cancel_reason, created_at, updated_at`

func projectionArgs(row *model.ProjectionRow) []any {
	r := row.Reservation
	args := []any{
		r.Ref.EventID, r.Ref.CourtID, r.ShortID, r.CourtName, r.Level,
		r.Start.UTC(), r.End.UTC(), string(r.State), r.Occupied, r.Missing,
	}
	for _, s := range r.Seats {
		args = append(args, s.Name, s.Phone)
	}
	return append(args,
		r.LastUpdate, r.Links.Cancel, r.Links.Leave, r.Links.Invite,
		row.FirstContactPhone, row.LastContactPhone, row.AuditNote, row.CancelReason,
	)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Create inserts a new row. created_at and updated_at default to now
// when zero.
func (r *ProjectionRepo) Create(ctx context.Context, row *model.ProjectionRow) error {
	args := projectionArgs(row)
	args = append(args, stamp(row.CreatedAt), stamp(row.UpdatedAt))
	q := fmt.Sprintf(`INSERT INTO reservations (%s) VALUES (%s)`, projectionColumns, placeholders(len(args)))
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: projection row %s exists", model.ErrConflict, row.Ref.EventID)
		}
		return err
	}
	return nil
}

// Update overwrites the row, inserting it when it does not exist. The
// creation time of an existing row is kept.
func (r *ProjectionRepo) Update(ctx context.Context, row *model.ProjectionRow) error {
	args := projectionArgs(row)
	args = append(args, stamp(row.CreatedAt), stamp(row.UpdatedAt))
	q := fmt.Sprintf(`INSERT INTO reservations (%s) VALUES (%s)
	ON DUPLICATE KEY UPDATE
	    court_id = VALUES(court_id), short_id = VALUES(short_id), court_name = VALUES(court_name),
	    level = VALUES(level), start_at = VALUES(start_at), end_at = VALUES(end_at),
	    state = VALUES(state), occupied = VALUES(occupied), missing = VALUES(missing),
	    seat1_name = VALUES(seat1_name), seat1_phone = VALUES(seat1_phone),
	    seat2_name = VALUES(seat2_name), seat2_phone = VALUES(seat2_phone),
	    seat3_name = VALUES(seat3_name), seat3_phone = VALUES(seat3_phone),
	    seat4_name = VALUES(seat4_name), seat4_phone = VALUES(seat4_phone),
	    last_update = VALUES(last_update),
	    link_cancel = IF(VALUES(link_cancel) = '', link_cancel, VALUES(link_cancel)),
	    link_leave = IF(VALUES(link_leave) = '', link_leave, VALUES(link_leave)),
	    link_invite = IF(VALUES(link_invite) = '', link_invite, VALUES(link_invite)),
	    last_contact_phone = VALUES(last_contact_phone),
	    audit_note = VALUES(audit_note),
	    updated_at = VALUES(updated_at)`, projectionColumns, placeholders(len(args)))
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// MarkCancelled flags the row; rows are never deleted.
func (r *ProjectionRepo) MarkCancelled(ctx context.Context, ref model.ReservationRef, reason string) error {
	const q = `UPDATE reservations
	           SET state = 'CANCELLED', cancel_reason = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE event_id = ?`
	res, err := r.db.ExecContext(ctx, q, reason, ref.EventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrReservationNotFound
	}
	return nil
}

// Get fetches one row by calendar event id.
func (r *ProjectionRepo) Get(ctx context.Context, eventID string) (*model.ProjectionRow, error) {
	q := `SELECT ` + projectionColumns + ` FROM reservations WHERE event_id = ? LIMIT 1`
	row, err := scanProjection(r.db.QueryRowContext(ctx, q, eventID))
	if err != nil {
		if isNoRows(err) {
			return nil, model.ErrReservationNotFound
		}
		return nil, err
	}
	return row, nil
}

// ListActive returns non-cancelled rows of a court starting in [from, to).
func (r *ProjectionRepo) ListActive(ctx context.Context, courtID string, from, to time.Time) ([]model.ProjectionRow, error) {
	q := `SELECT ` + projectionColumns + ` FROM reservations
	      WHERE court_id = ? AND state <> 'CANCELLED' AND start_at >= ? AND start_at < ?
	      ORDER BY start_at`
	return r.list(ctx, q, courtID, from.UTC(), to.UTC())
}

// ListByPhone returns upcoming non-cancelled reservations in which phone
// holds any seat.
func (r *ProjectionRepo) ListByPhone(ctx context.Context, phone string, from time.Time) ([]model.ProjectionRow, error) {
	q := `SELECT ` + projectionColumns + ` FROM reservations
	      WHERE state <> 'CANCELLED' AND start_at >= ?
	        AND (seat1_phone = ? OR seat2_phone = ? OR seat3_phone = ? OR seat4_phone = ?)
	      ORDER BY start_at`
	return r.list(ctx, q, from.UTC(), phone, phone, phone, phone)
}

// ListOpen returns reservations that still have free seats, starting at
// or after from.
func (r *ProjectionRepo) ListOpen(ctx context.Context, from time.Time) ([]model.ProjectionRow, error) {
	q := `SELECT ` + projectionColumns + ` FROM reservations
	      WHERE state = 'OPEN' AND start_at >= ?
	      ORDER BY start_at`
	return r.list(ctx, q, from.UTC())
}

func (r *ProjectionRepo) list(ctx context.Context, q string, args ...any) ([]model.ProjectionRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProjectionRow
	for rows.Next() {
		row, err := scanProjection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProjection(s scanner) (*model.ProjectionRow, error) {
	var (
		row   model.ProjectionRow
		state string
	)
	res := &row.Reservation
	dest := []any{
		&res.Ref.EventID, &res.Ref.CourtID, &res.ShortID, &res.CourtName, &res.Level,
		&res.Start, &res.End, &state, &res.Occupied, &res.Missing,
	}
	for i := range res.Seats {
		res.Seats[i].Position = i + 1
		dest = append(dest, &res.Seats[i].Name, &res.Seats[i].Phone)
	}
	dest = append(dest,
		&res.LastUpdate, &res.Links.Cancel, &res.Links.Leave, &res.Links.Invite,
		&row.FirstContactPhone, &row.LastContactPhone, &row.AuditNote, &row.CancelReason,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	res.State = model.ReservationState(state)
	return &row, nil
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
