// README: Booking store; the seat ledger runs inside a ride-row lock.
package booking

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

const bookingColumns = `
	id, ride_id, passenger_id, seats, status, status_version,
	payment_status, fee_amount, fee_currency, created_at, updated_at`

// Create inserts a booking while holding an exclusive lock on the ride row.
// Capacity, duplicate, and self-booking checks all happen under the lock so
// two concurrent attempts at the last seat cannot both succeed.
func (s *Store) Create(ctx context.Context, b *Booking) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var capacity int
	var rideStatus string
	var driverID string
	err = tx.QueryRow(ctx, `
		SELECT capacity, status, driver_id FROM rides WHERE id = $1 FOR UPDATE`,
		string(b.RideID),
	).Scan(&capacity, &rideStatus, &driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRideNotFound
	}
	if err != nil {
		return err
	}
	if rideStatus != "active" {
		return ErrRideNotActive
	}
	if driverID == string(b.PassengerID) {
		return ErrSelfBooking
	}

	var taken int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(seats), 0) FROM bookings
		WHERE ride_id = $1 AND status <> 'cancelled'`,
		string(b.RideID),
	).Scan(&taken)
	if err != nil {
		return err
	}
	available := capacity - taken
	if available < b.Seats {
		return &InsufficientSeatsError{Available: available, Requested: b.Seats}
	}

	var duplicate bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE ride_id = $1 AND passenger_id = $2 AND status <> 'cancelled'
		)`,
		string(b.RideID), string(b.PassengerID),
	).Scan(&duplicate)
	if err != nil {
		return err
	}
	if duplicate {
		return ErrDuplicateBooking
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(b.ID), string(b.RideID), string(b.PassengerID), b.Seats,
		string(b.Status), b.StatusVersion,
		string(b.PaymentStatus), b.Fee.Amount, b.Fee.Currency,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateSeats re-runs the availability check under the same ride lock,
// excluding the booking's own previously-held seats.
func (s *Store) UpdateSeats(ctx context.Context, id types.ID, seats int) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var rideID string
	var status string
	err = tx.QueryRow(ctx, `
		SELECT ride_id, status FROM bookings WHERE id = $1`,
		string(id),
	).Scan(&rideID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !Status(status).Active() {
		return ErrInvalidTransition
	}

	var capacity int
	err = tx.QueryRow(ctx, `SELECT capacity FROM rides WHERE id = $1 FOR UPDATE`, rideID).Scan(&capacity)
	if err != nil {
		return err
	}

	var takenByOthers int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(seats), 0) FROM bookings
		WHERE ride_id = $1 AND id <> $2 AND status <> 'cancelled'`,
		rideID, string(id),
	).Scan(&takenByOthers)
	if err != nil {
		return err
	}
	available := capacity - takenByOthers
	if available < seats {
		return &InsufficientSeatsError{Available: available, Requested: seats}
	}

	_, err = tx.Exec(ctx, `
		UPDATE bookings SET seats = $1, updated_at = NOW() WHERE id = $2`,
		seats, string(id),
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	return scanBooking(row)
}

func (s *Store) ListByPassenger(ctx context.Context, passengerID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE passenger_id = $1 ORDER BY created_at`,
		string(passengerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *Store) ListByRide(ctx context.Context, rideID types.ID) ([]Booking, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE ride_id = $1 ORDER BY created_at`,
		string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// UpdateStatus performs an optimistic compare-and-swap on (status, version).
// A false return means another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1, status_version = status_version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaid flips the booking to paid+confirmed. The payment_status guard
// makes redelivered confirmations a no-op at the row level.
func (s *Store) MarkPaid(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET payment_status = 'paid', status = 'confirmed',
		    status_version = status_version + 1, updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'paid' AND status <> 'cancelled'`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings SET payment_status = $1, updated_at = NOW() WHERE id = $2`,
		string(ps), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// CancelAllForRide releases every active booking on a ride and returns how
// many were affected.
func (s *Store) CancelAllForRide(ctx context.Context, rideID types.ID) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled', status_version = status_version + 1, updated_at = NOW()
		WHERE ride_id = $1 AND status <> 'cancelled'`,
		string(rideID),
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// HasConfirmed reports whether a confirmed booking links the passenger to the
// ride. Used by the no-show report validation.
func (s *Store) HasConfirmed(ctx context.Context, rideID, passengerID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE ride_id = $1 AND passenger_id = $2 AND status = 'confirmed'
		)`,
		string(rideID), string(passengerID),
	).Scan(&exists)
	return exists, err
}

// AvailableSeats recomputes remaining capacity outside any lock; use only for
// display, never to gate a booking.
func (s *Store) AvailableSeats(ctx context.Context, rideID types.ID) (int, error) {
	var capacity, taken int
	err := s.db.QueryRow(ctx, `
		SELECT r.capacity,
		       COALESCE((SELECT SUM(b.seats) FROM bookings b
		                 WHERE b.ride_id = r.id AND b.status <> 'cancelled'), 0)
		FROM rides r WHERE r.id = $1`,
		string(rideID),
	).Scan(&capacity, &taken)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrRideNotFound
	}
	if err != nil {
		return 0, err
	}
	return capacity - taken, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status, paymentStatus string
	err := row.Scan(
		&b.ID, &b.RideID, &b.PassengerID, &b.Seats, &status, &b.StatusVersion,
		&paymentStatus, &b.Fee.Amount, &b.Fee.Currency, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ok bool
	if b.Status, ok = ParseStatus(status); !ok {
		return nil, errors.New("booking: unknown status " + status)
	}
	if b.PaymentStatus, ok = ParsePaymentStatus(paymentStatus); !ok {
		return nil, errors.New("booking: unknown payment status " + paymentStatus)
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
