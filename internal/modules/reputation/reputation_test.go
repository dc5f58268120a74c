// README: Penalty window, review, and no-show report tests.
package reputation

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/config"
	"ridepool/internal/logging"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
	"ridepool/internal/notify"
	"ridepool/internal/types"
)

var testPolicy = config.PolicyConfig{
	CancelPenaltyPoints: 20,
	PenaltyWindow:       24 * time.Hour,
	PublishWindow:       72 * time.Hour,
	PastGrace:           15 * time.Minute,
	BookingFee:          1500,
	Currency:            "ARS",
}

func TestWithinPenaltyWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	cases := []struct {
		name      string
		departure time.Time
		want      bool
	}{
		{"departure in 12h", now.Add(12 * time.Hour), true},
		{"departure exactly 24h out", now.Add(24 * time.Hour), true},
		{"departure 25h out", now.Add(25 * time.Hour), false},
		{"departure an hour ago", now.Add(-time.Hour), true},
		{"departure long past", now.Add(-72 * time.Hour), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinPenaltyWindow(tc.departure, now, window); got != tc.want {
				t.Fatalf("WithinPenaltyWindow = %v, want %v", got, tc.want)
			}
		})
	}
}

type repFixture struct {
	db        *pgxpool.Pool
	svc       *Service
	users     *user.Store
	bookings  *booking.Service
	driver    types.ID
	passenger types.ID
	rideID    types.ID
	booking   *booking.Booking
	departure time.Time
}

type noPenalty struct{}

func (noPenalty) OnBookingCancelled(context.Context, types.ID, time.Time) error { return nil }

func setupRepFixture(t *testing.T) *repFixture {
	t.Helper()

	dsn := os.Getenv("RIDEPOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEPOOL_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE no_show_reports, reviews, payments, bookings, requests, rides, users, audit_logs`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	userStore := user.NewStore(db)
	mkUser := func(name string) types.ID {
		u := &user.User{
			ID:             types.NewID(),
			Identity:       name + "-identity",
			Email:          name + "@example.com",
			Name:           name,
			Gender:         user.GenderOther,
			Active:         true,
			CanDrive:       true,
			CanRequest:     true,
			RatingBaseline: 100,
			Verification:   user.VerificationVerified,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := userStore.Create(ctx, u); err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		return u.ID
	}
	driver := mkUser("driver")
	passenger := mkUser("pass")

	rideStore := ride.NewStore(db)
	departure := time.Now().Add(-2 * time.Hour).UTC() // already departed
	r := &ride.Ride{
		ID: types.NewID(), DriverID: driver, Origin: "Rosario", Destination: "Córdoba",
		Departure: departure, Price: 5000, Capacity: 3,
		Status: ride.StatusActive, CreatedAt: time.Now().UTC(),
	}
	if err := rideStore.CreateRide(ctx, r); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	bookingStore := booking.NewStore(db)
	bookingSvc := booking.NewService(bookingStore, rideStore, noPenalty{}, notify.Noop{}, nil, testPolicy)
	b, err := bookingSvc.Create(ctx, booking.CreateCommand{RideID: r.ID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	if _, err := bookingStore.MarkPaid(ctx, b.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	b, err = bookingStore.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("refresh booking: %v", err)
	}

	svc := NewService(NewStore(db), rideStore, bookingStore, userStore, testPolicy, nil, logging.New("test"))

	return &repFixture{
		db:        db,
		svc:       svc,
		users:     userStore,
		bookings:  bookingSvc,
		driver:    driver,
		passenger: passenger,
		rideID:    r.ID,
		booking:   b,
		departure: departure,
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range strings.Split(cleaned, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func TestSubmitReviewRecomputesBaseline(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	rev, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{
		BookingID: f.booking.ID, Rating: 4, Comment: "smooth ride",
	})
	if err != nil {
		t.Fatalf("submit review: %v", err)
	}
	if rev.RevieweeID != f.driver {
		t.Fatalf("passenger review must target the driver, got %s", rev.RevieweeID)
	}

	u, err := f.users.Get(ctx, f.driver)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	// round(4.0 * 20) = 80
	if u.RatingBaseline != 80 {
		t.Fatalf("expected baseline 80, got %d", u.RatingBaseline)
	}
	if u.ReputationScore() != 80 {
		t.Fatalf("expected score 80, got %d", u.ReputationScore())
	}
}

func TestSubmitReviewValidation(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 0}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 0: expected ErrInvalidRating, got %v", err)
	}
	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 6}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating 6: expected ErrInvalidRating, got %v", err)
	}
	if _, err := f.svc.SubmitReview(ctx, "stranger", SubmitReviewCommand{BookingID: f.booking.ID, Rating: 3}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger review: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: "missing", Rating: 3}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing booking: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 5}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 5}); !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("second review: expected ErrDuplicateReview, got %v", err)
	}

	// The counterpart's slot is independent.
	if _, err := f.svc.SubmitReview(ctx, f.driver, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 4}); err != nil {
		t.Fatalf("driver review: %v", err)
	}
}

func TestBaselineAveragesAllReviews(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	second := &user.User{
		ID: types.NewID(), Identity: "pass2-identity", Email: "pass2@example.com",
		Name: "pass2", Gender: user.GenderOther, Active: true, CanRequest: true,
		RatingBaseline: 100, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := f.users.Create(ctx, second); err != nil {
		t.Fatalf("create user: %v", err)
	}
	b2, err := f.bookings.Create(ctx, booking.CreateCommand{RideID: f.rideID, PassengerID: second.ID, Seats: 1})
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if _, err := booking.NewStore(f.db).MarkPaid(ctx, b2.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 4}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := f.svc.SubmitReview(ctx, second.ID, SubmitReviewCommand{BookingID: b2.ID, Rating: 2}); err != nil {
		t.Fatalf("second review: %v", err)
	}

	// round((4+2)/2 * 20) = 60
	u, err := f.users.Get(ctx, f.driver)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	if u.RatingBaseline != 60 {
		t.Fatalf("expected baseline 60, got %d", u.RatingBaseline)
	}
}

func TestSubmitReviewBeforePayment(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	second := &user.User{
		ID: types.NewID(), Identity: "late-identity", Email: "late@example.com",
		Name: "late", Gender: user.GenderOther, Active: true, CanRequest: true,
		RatingBaseline: 100, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := f.users.Create(ctx, second); err != nil {
		t.Fatalf("create user: %v", err)
	}
	b, err := f.bookings.Create(ctx, booking.CreateCommand{RideID: f.rideID, PassengerID: second.ID, Seats: 1})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	// Still awaiting payment: not reviewable even though the ride departed.
	if _, err := f.svc.SubmitReview(ctx, second.ID, SubmitReviewCommand{BookingID: b.ID, Rating: 5}); !errors.Is(err, ErrNotReviewable) {
		t.Fatalf("expected ErrNotReviewable, got %v", err)
	}
}

func TestReportNoShow(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	rep, err := f.svc.ReportNoShow(ctx, f.driver, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: f.passenger, Reason: "did not show up",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.ReportedID != f.passenger {
		t.Fatalf("unexpected reported id: %s", rep.ReportedID)
	}

	u, err := f.users.Get(ctx, f.passenger)
	if err != nil {
		t.Fatalf("get passenger: %v", err)
	}
	if u.PenaltyPoints != 20 {
		t.Fatalf("expected 20 penalty points, got %d", u.PenaltyPoints)
	}
	if u.ReputationScore() != 80 {
		t.Fatalf("expected score 80, got %d", u.ReputationScore())
	}

	// One report per (ride, reporter, reported).
	if _, err := f.svc.ReportNoShow(ctx, f.driver, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: f.passenger,
	}); !errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}

	// The passenger can independently report the driver.
	if _, err := f.svc.ReportNoShow(ctx, f.passenger, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: f.driver,
	}); err != nil {
		t.Fatalf("counter report: %v", err)
	}
}

func TestReportNoShowGuards(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	if _, err := f.svc.ReportNoShow(ctx, f.driver, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: f.driver,
	}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("self report: expected ErrBadRequest, got %v", err)
	}

	// Neither party is the driver: no booking can link them.
	if _, err := f.svc.ReportNoShow(ctx, f.passenger, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: "stranger",
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unlinked pair: expected ErrForbidden, got %v", err)
	}

	// Before departure the report is premature.
	f.svc.now = func() time.Time { return f.departure.Add(-time.Hour) }
	if _, err := f.svc.ReportNoShow(ctx, f.driver, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: f.passenger,
	}); !errors.Is(err, ErrTooEarly) {
		t.Fatalf("expected ErrTooEarly, got %v", err)
	}
}

func TestReportNoShowRequiresConfirmedBooking(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	unrelated := &user.User{
		ID: types.NewID(), Identity: "ghost-identity", Email: "ghost@example.com",
		Name: "ghost", Gender: user.GenderOther, Active: true, CanRequest: true,
		RatingBaseline: 100, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := f.users.Create(ctx, unrelated); err != nil {
		t.Fatalf("create user: %v", err)
	}

	// The reported passenger holds no confirmed booking on this ride.
	if _, err := f.svc.ReportNoShow(ctx, f.driver, ReportNoShowCommand{
		RideID: f.rideID, ReportedID: unrelated.ID,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestPenaltyFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	// Pile on more penalties than the baseline can absorb.
	for i := 0; i < 6; i++ {
		if err := f.users.AddPenalty(ctx, f.passenger, 20, true); err != nil {
			t.Fatalf("add penalty: %v", err)
		}
	}
	u, err := f.users.Get(ctx, f.passenger)
	if err != nil {
		t.Fatalf("get passenger: %v", err)
	}
	if u.PenaltyPoints != 120 {
		t.Fatalf("expected 120 points, got %d", u.PenaltyPoints)
	}
	if u.ReputationScore() != 0 {
		t.Fatalf("score must floor at 0, got %d", u.ReputationScore())
	}
	if u.CancellationCount != 6 {
		t.Fatalf("expected 6 cancellations, got %d", u.CancellationCount)
	}
}

func TestListUserReviews(t *testing.T) {
	ctx := context.Background()
	f := setupRepFixture(t)

	if _, err := f.svc.SubmitReview(ctx, f.passenger, SubmitReviewCommand{BookingID: f.booking.ID, Rating: 5, Comment: "great"}); err != nil {
		t.Fatalf("review: %v", err)
	}

	reviews, err := f.svc.ListUserReviews(ctx, f.driver, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 5 {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}

	if _, err := f.svc.ListUserReviews(ctx, "missing", 0, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}
}
