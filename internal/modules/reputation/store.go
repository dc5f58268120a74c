// README: Review and report store; uniqueness constraints back the duplicate guards.
package reputation

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InsertReview relies on the (booking_id, reviewer_id) unique index: a
// duplicate submission inserts nothing and surfaces as ErrDuplicateReview.
func (s *Store) InsertReview(ctx context.Context, r *Review) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO reviews (id, booking_id, reviewer_id, reviewee_id, rating, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (booking_id, reviewer_id) DO NOTHING`,
		string(r.ID), string(r.BookingID), string(r.ReviewerID), string(r.RevieweeID),
		r.Rating, r.Comment, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateReview
	}
	return nil
}

// AverageRating returns the mean of all ratings the user has received and how
// many there are.
func (s *Store) AverageRating(ctx context.Context, revieweeID types.ID) (float64, int, error) {
	var avg *float64
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT AVG(rating), COUNT(*) FROM reviews WHERE reviewee_id = $1`,
		string(revieweeID),
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}

func (s *Store) ListByReviewee(ctx context.Context, revieweeID types.ID, offset, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, reviewer_id, reviewee_id, rating, comment, created_at
		FROM reviews WHERE reviewee_id = $1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		string(revieweeID), offset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.BookingID, &r.ReviewerID, &r.RevieweeID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertReport closes the duplicate-report gap with the (ride, reporter,
// reported) unique index.
func (s *Store) InsertReport(ctx context.Context, r *NoShowReport) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO no_show_reports (id, ride_id, reporter_id, reported_id, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (ride_id, reporter_id, reported_id) DO NOTHING`,
		string(r.ID), string(r.RideID), string(r.ReporterID), string(r.ReportedID),
		r.Reason, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateReport
	}
	return nil
}
