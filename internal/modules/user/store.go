// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

var ErrNotFound = errors.New("user not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const userColumns = `
	id, identity, email, name, phone, gender, active,
	can_drive, can_request,
	rating_baseline, penalty_points, cancellation_count,
	verification_status,
	car_model, car_plate, allow_pets, allow_smoking, allow_luggage,
	created_at, updated_at`

func (s *Store) Create(ctx context.Context, u *User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		string(u.ID), u.Identity, u.Email, u.Name, u.Phone, string(u.Gender), u.Active,
		u.CanDrive, u.CanRequest,
		u.RatingBaseline, u.PenaltyPoints, u.CancellationCount,
		string(u.Verification),
		u.CarModel, u.CarPlate, u.AllowPets, u.AllowSmoking, u.AllowLuggage,
		u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var gender, verification string
	err := row.Scan(
		&u.ID, &u.Identity, &u.Email, &u.Name, &u.Phone, &gender, &u.Active,
		&u.CanDrive, &u.CanRequest,
		&u.RatingBaseline, &u.PenaltyPoints, &u.CancellationCount,
		&verification,
		&u.CarModel, &u.CarPlate, &u.AllowPets, &u.AllowSmoking, &u.AllowLuggage,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Gender = Gender(gender)
	u.Verification = VerificationStatus(verification)
	if !u.Verification.Valid() {
		// Unknown column values are rejected at the data-access boundary.
		return nil, errors.New("user: unknown verification status " + verification)
	}
	return &u, nil
}

// AddPenalty deducts points by accumulating them and bumps the cancellation
// counter when the penalty stems from a cancellation.
func (s *Store) AddPenalty(ctx context.Context, id types.ID, points int, countCancellation bool) error {
	bump := 0
	if countCancellation {
		bump = 1
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET penalty_points = penalty_points + $1,
		    cancellation_count = cancellation_count + $2,
		    updated_at = NOW()
		WHERE id = $3`,
		points, bump, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// SetRatingBaseline replaces the peer-review baseline wholesale.
func (s *Store) SetRatingBaseline(ctx context.Context, id types.ID, baseline int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET rating_baseline = $1, updated_at = NOW() WHERE id = $2`,
		baseline, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
