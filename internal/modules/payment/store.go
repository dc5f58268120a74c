// README: Payment store backed by PostgreSQL.
package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const paymentColumns = `
	id, booking_id, external_id, amount, currency, status, created_at, updated_at`

// Create inserts a payment record. The unique index on external_id turns a
// concurrent duplicate insert into a no-op.
func (s *Store) Create(ctx context.Context, p *Payment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id) DO NOTHING`,
		string(p.ID), string(p.BookingID), p.ExternalID,
		p.Amount.Amount, p.Amount.Currency, string(p.Status),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*Payment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE external_id = $1`, externalID)
	return scanPayment(row)
}

func (s *Store) GetByBooking(ctx context.Context, bookingID types.ID) (*Payment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC LIMIT 1`,
		string(bookingID))
	return scanPayment(row)
}

// Approve flips a payment to approved exactly once; a false return means it
// was already approved (or rejected) and the delivery is a duplicate.
func (s *Store) Approve(ctx context.Context, externalID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE payments SET status = 'approved', updated_at = NOW()
		WHERE external_id = $1 AND status = 'pending'`,
		externalID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var status string
	err := row.Scan(
		&p.ID, &p.BookingID, &p.ExternalID,
		&p.Amount.Amount, &p.Amount.Currency, &status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}
