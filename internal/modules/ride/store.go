// README: Ride and request store backed by PostgreSQL.
package ride

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

const rideColumns = `
	id, driver_id, origin, destination,
	origin_lat, origin_lng, destination_lat, destination_lng,
	departure, price, capacity, status,
	women_only, allow_pets, allow_smoking, allow_luggage, created_at`

func (s *Store) CreateRide(ctx context.Context, r *Ride) error {
	oLat, oLng := splitPoint(r.OriginPos)
	dLat, dLng := splitPoint(r.DestPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		string(r.ID), string(r.DriverID), r.Origin, r.Destination,
		oLat, oLng, dLat, dLng,
		r.Departure, r.Price, r.Capacity, string(r.Status),
		r.WomenOnly, r.AllowPets, r.AllowSmoking, r.AllowLuggage, r.CreatedAt,
	)
	return err
}

func (s *Store) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	return scanRide(row)
}

// RideFilter narrows listing; zero value lists every active ride.
type RideFilter struct {
	AllowPets    bool
	AllowSmoking bool
	// HideWomenOnly removes women-only rides (applied for male viewers).
	HideWomenOnly bool
	// FemaleDriversOnly restricts to rides offered by female drivers.
	FemaleDriversOnly bool
}

const prefixedRideColumns = `
	r.id, r.driver_id, r.origin, r.destination,
	r.origin_lat, r.origin_lng, r.destination_lat, r.destination_lng,
	r.departure, r.price, r.capacity, r.status,
	r.women_only, r.allow_pets, r.allow_smoking, r.allow_luggage, r.created_at`

func (s *Store) ListActiveRides(ctx context.Context, f RideFilter) ([]Ride, error) {
	q := `SELECT ` + prefixedRideColumns + ` FROM rides r`
	if f.FemaleDriversOnly {
		q += ` JOIN users u ON u.id = r.driver_id AND u.gender = 'F'`
	}
	q += ` WHERE r.status = 'active'`
	if f.AllowPets {
		q += ` AND r.allow_pets`
	}
	if f.AllowSmoking {
		q += ` AND r.allow_smoking`
	}
	if f.HideWomenOnly {
		q += ` AND NOT r.women_only`
	}
	q += ` ORDER BY r.departure`
	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func (s *Store) ListRidesByDriver(ctx context.Context, driverID types.ID) ([]Ride, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE driver_id = $1 ORDER BY departure`,
		string(driverID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

// UpdateRideStatus transitions a ride guarded by its current status, so two
// concurrent cancels cannot both count as the effective one.
func (s *Store) UpdateRideStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE rides SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const requestColumns = `
	id, passenger_id, origin, destination,
	origin_lat, origin_lng, destination_lat, destination_lng,
	window_start, window_end, flexible, proposed_price, created_at`

func (s *Store) CreateRequest(ctx context.Context, r *Request) error {
	oLat, oLng := splitPoint(r.OriginPos)
	dLat, dLng := splitPoint(r.DestPos)
	_, err := s.db.Exec(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		string(r.ID), string(r.PassengerID), r.Origin, r.Destination,
		oLat, oLng, dLat, dLng,
		r.WindowStart, r.WindowEnd, r.Flexible, r.ProposedPrice, r.CreatedAt,
	)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

func (s *Store) ListRequests(ctx context.Context) ([]Request, error) {
	rows, err := s.db.Query(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY window_start`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *Store) ListRequestsByPassenger(ctx context.Context, passengerID types.ID) ([]Request, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE passenger_id = $1 ORDER BY window_start`,
		string(passengerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *Store) DeleteRequest(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM requests WHERE id = $1`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var status string
	var oLat, oLng, dLat, dLng *float64
	err := row.Scan(
		&r.ID, &r.DriverID, &r.Origin, &r.Destination,
		&oLat, &oLng, &dLat, &dLng,
		&r.Departure, &r.Price, &r.Capacity, &status,
		&r.WomenOnly, &r.AllowPets, &r.AllowSmoking, &r.AllowLuggage, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Status, err = ParseStatus(status)
	if err != nil {
		return nil, err
	}
	r.OriginPos = joinPoint(oLat, oLng)
	r.DestPos = joinPoint(dLat, dLng)
	return &r, nil
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var oLat, oLng, dLat, dLng *float64
	err := row.Scan(
		&r.ID, &r.PassengerID, &r.Origin, &r.Destination,
		&oLat, &oLng, &dLat, &dLng,
		&r.WindowStart, &r.WindowEnd, &r.Flexible, &r.ProposedPrice, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.OriginPos = joinPoint(oLat, oLng)
	r.DestPos = joinPoint(dLat, dLng)
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]Ride, error) {
	var out []Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func splitPoint(p *types.Point) (lat, lng *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lng
}

func joinPoint(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &types.Point{Lat: *lat, Lng: *lng}
}
