// README: DB-backed seat ledger and lifecycle tests.
package booking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/config"
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

// penaltyStub records which passengers were handed to the penalty engine.
type penaltyStub struct {
	cancelled []types.ID
}

func (p *penaltyStub) OnBookingCancelled(_ context.Context, passengerID types.ID, _ time.Time) error {
	p.cancelled = append(p.cancelled, passengerID)
	return nil
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
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
	return db
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
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
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

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if stmt := strings.TrimSpace(p); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func createTestUser(t *testing.T, db *pgxpool.Pool, name string) types.ID {
	t.Helper()
	store := user.NewStore(db)
	u := &user.User{
		ID:             types.NewID(),
		Identity:       name + "-identity",
		Email:          name + "@example.com",
		Name:           name,
		Phone:          "+549115555" + name,
		Gender:         user.GenderOther,
		Active:         true,
		CanDrive:       true,
		CanRequest:     true,
		RatingBaseline: 100,
		Verification:   user.VerificationVerified,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func createTestRide(t *testing.T, db *pgxpool.Pool, driverID types.ID, capacity int, departure time.Time) types.ID {
	t.Helper()
	store := ride.NewStore(db)
	r := &ride.Ride{
		ID:          types.NewID(),
		DriverID:    driverID,
		Origin:      "Rosario",
		Destination: "Córdoba",
		OriginPos:   &types.Point{Lat: -32.9442, Lng: -60.6505},
		DestPos:     &types.Point{Lat: -31.4201, Lng: -64.1888},
		Departure:   departure,
		Price:       5000,
		Capacity:    capacity,
		Status:      ride.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateRide(context.Background(), r); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r.ID
}

func newTestService(db *pgxpool.Pool, penalty PenaltyEngine) *Service {
	return NewService(NewStore(db), ride.NewStore(db), penalty, notify.Noop{}, nil, testPolicy)
}

func TestCreateBookingLedger(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	p1 := createTestUser(t, db, "p1")
	p2 := createTestUser(t, db, "p2")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p1, Seats: 2})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if b.Status != StatusAwaitingPayment || b.PaymentStatus != PaymentUnpaid {
		t.Fatalf("unexpected initial state: %s/%s", b.Status, b.PaymentStatus)
	}
	if b.Fee.Amount != 1500 || b.Fee.Currency != "ARS" {
		t.Fatalf("fee not fixed at creation: %+v", b.Fee)
	}

	available, err := svc.AvailableSeats(ctx, rideID)
	if err != nil {
		t.Fatalf("available seats: %v", err)
	}
	if available != 2 {
		t.Fatalf("expected 2 seats left, got %d", available)
	}

	_, err = svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p2, Seats: 3})
	var insufficient *InsufficientSeatsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientSeatsError, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("wrong counts in error: %+v", insufficient)
	}

	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p2, Seats: 2}); err != nil {
		t.Fatalf("fitting booking rejected: %v", err)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	rideID := createTestRide(t, db, driver, 3, time.Now().Add(48*time.Hour).UTC())

	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 0}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("zero seats: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 11}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("over max seats: expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: driver, Seats: 1}); !errors.Is(err, ErrSelfBooking) {
		t.Fatalf("self booking: expected ErrSelfBooking, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: "missing", PassengerID: passenger, Seats: 1}); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("missing ride: expected ErrRideNotFound, got %v", err)
	}
}

func TestDuplicateBookingRule(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1}); !errors.Is(err, ErrDuplicateBooking) {
		t.Fatalf("expected ErrDuplicateBooking, got %v", err)
	}

	// A cancelled booking no longer blocks a new one.
	if err := svc.Cancel(ctx, b.ID, passenger); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1}); err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
}

func TestCancelReleasesSeats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	p1 := createTestUser(t, db, "p1")
	p2 := createTestUser(t, db, "p2")
	rideID := createTestRide(t, db, driver, 2, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p1, Seats: 2})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	// Unpaid bookings still hold inventory.
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p2, Seats: 1}); err == nil {
		t.Fatal("expected the unpaid hold to block the second passenger")
	}
	if err := svc.Cancel(ctx, b.ID, p1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p2, Seats: 1}); err != nil {
		t.Fatalf("expected seats back after cancel: %v", err)
	}
}

func TestCancelAuthorizationAndPenalty(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	penalty := &penaltyStub{}
	svc := newTestService(db, penalty)

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	stranger := createTestUser(t, db, "other")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if err := svc.Cancel(ctx, b.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel: expected ErrForbidden, got %v", err)
	}

	// Driver cancelling a passenger's booking is allowed and does not route
	// through the passenger penalty path.
	if err := svc.Cancel(ctx, b.ID, driver); err != nil {
		t.Fatalf("driver cancel: %v", err)
	}
	if len(penalty.cancelled) != 0 {
		t.Fatalf("driver cancel must not penalize the passenger: %v", penalty.cancelled)
	}

	b2, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if err := svc.Cancel(ctx, b2.ID, passenger); err != nil {
		t.Fatalf("passenger cancel: %v", err)
	}
	if len(penalty.cancelled) != 1 || penalty.cancelled[0] != passenger {
		t.Fatalf("passenger cancel must reach the penalty engine: %v", penalty.cancelled)
	}

	// Cancelling twice is an invalid transition.
	if err := svc.Cancel(ctx, b2.ID, passenger); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double cancel: expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteRequiresDeparture(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	departure := time.Now().Add(time.Hour).UTC()
	rideID := createTestRide(t, db, driver, 4, departure)

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	store := NewStore(db)
	if _, err := store.MarkPaid(ctx, b.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := svc.Complete(ctx, b.ID, driver); !errors.Is(err, ErrNotDeparted) {
		t.Fatalf("expected ErrNotDeparted before departure, got %v", err)
	}

	svc.now = func() time.Time { return departure.Add(time.Minute) }
	if err := svc.Complete(ctx, b.ID, driver); err != nil {
		t.Fatalf("complete after departure: %v", err)
	}
	got, err := svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})
	svc.now = func() time.Time { return time.Now().Add(72 * time.Hour) }

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	// Still awaiting payment: completion is not reachable.
	if err := svc.Complete(ctx, b.ID, driver); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateSeatsReRunsLedger(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	p1 := createTestUser(t, db, "p1")
	p2 := createTestUser(t, db, "p2")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b1, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p1, Seats: 2})
	if err != nil {
		t.Fatalf("booking 1: %v", err)
	}
	if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p2, Seats: 1}); err != nil {
		t.Fatalf("booking 2: %v", err)
	}

	// Growing 2 -> 3 is fine (own seats excluded from the sum), 2 -> 4 is not.
	if err := svc.UpdateSeats(ctx, b1.ID, p1, 3); err != nil {
		t.Fatalf("grow to 3: %v", err)
	}
	err = svc.UpdateSeats(ctx, b1.ID, p1, 4)
	var insufficient *InsufficientSeatsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("grow to 4: expected InsufficientSeatsError, got %v", err)
	}
	if err := svc.UpdateSeats(ctx, b1.ID, p2, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign update: expected ErrForbidden, got %v", err)
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})
	store := NewStore(db)

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}

	applied, err := store.MarkPaid(ctx, b.ID)
	if err != nil || !applied {
		t.Fatalf("first MarkPaid: applied=%v err=%v", applied, err)
	}
	applied, err = store.MarkPaid(ctx, b.ID)
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if applied {
		t.Fatal("second MarkPaid must be a no-op")
	}

	got, err := store.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusConfirmed || got.PaymentStatus != PaymentPaid {
		t.Fatalf("unexpected state after payment: %s/%s", got.Status, got.PaymentStatus)
	}
}

func TestMarkPaidSkipsCancelled(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})
	store := NewStore(db)

	driver := createTestUser(t, db, "driver")
	passenger := createTestUser(t, db, "pass")
	rideID := createTestRide(t, db, driver, 4, time.Now().Add(48*time.Hour).UTC())

	b, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: passenger, Seats: 1})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if err := svc.Cancel(ctx, b.ID, passenger); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	applied, err := store.MarkPaid(ctx, b.ID)
	if err != nil {
		t.Fatalf("MarkPaid on cancelled: %v", err)
	}
	if applied {
		t.Fatal("a cancelled booking must not become paid")
	}
}

func TestCancelAllForRide(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newTestService(db, &penaltyStub{})

	driver := createTestUser(t, db, "driver")
	rideID := createTestRide(t, db, driver, 6, time.Now().Add(48*time.Hour).UTC())

	for i := 0; i < 3; i++ {
		p := createTestUser(t, db, fmt.Sprintf("p%d", i))
		if _, err := svc.Create(ctx, CreateCommand{RideID: rideID, PassengerID: p, Seats: 1}); err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}

	affected, err := svc.CancelAllForRide(ctx, rideID)
	if err != nil {
		t.Fatalf("cancel all: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 cancelled, got %d", affected)
	}
	// Idempotent: nothing left to cancel.
	affected, err = svc.CancelAllForRide(ctx, rideID)
	if err != nil || affected != 0 {
		t.Fatalf("second cancel all: affected=%d err=%v", affected, err)
	}
}
