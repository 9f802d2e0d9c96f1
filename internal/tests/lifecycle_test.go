package tests

import (
	"context"
	"errors"
	"testing"

	"hail/internal/domain"
	"hail/internal/negotiation"
	"hail/internal/realtime"
)

func TestRaise_ReopensWindowWithHigherFare(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))
	f.onlineDriver("driver-1", 25.201, 55.271)
	f.onlineDriver("driver-2", 25.202, 55.272)

	b, count, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1",
		UserID:    "user-1",
		NewFare:   120,
	})
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 drivers notified, got %d", count)
	}
	if b.RaisedFare != 120 {
		t.Errorf("expected raised fare 120, got %.2f", b.RaisedFare)
	}
	if b.Status != domain.BookingStatusPending {
		t.Errorf("raise must keep the booking pending, got %s", b.Status)
	}
	if got := len(f.publisher.EventsNamed("new_booking_request")); got != 2 {
		t.Errorf("expected 2 booking request events, got %d", got)
	}
}

func TestRaise_MustStrictlyIncreaseWithinCap(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	for _, fare := range []float64{100, 99, 151} {
		_, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
			BookingID: "booking-1",
			UserID:    "user-1",
			NewFare:   fare,
		})
		band, ok := negotiation.AsBandError(err)
		if !ok {
			t.Fatalf("raise to %.2f: expected BandError, got %v", fare, err)
		}
		if band.Min != 100 || band.Max != 150 {
			t.Errorf("raise to %.2f: expected bounds [100, 150], got [%.2f, %.2f]",
				fare, band.Min, band.Max)
		}
	}

	// The cap itself is allowed; ErrNoCandidates from the empty directory
	// is tolerated.
	if _, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1",
		UserID:    "user-1",
		NewFare:   150,
	}); err != nil {
		t.Errorf("raise to the cap failed: %v", err)
	}
}

func TestRaise_CapFollowsLatestRaise(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	if _, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1", UserID: "user-1", NewFare: 120,
	}); err != nil {
		t.Fatalf("first raise failed: %v", err)
	}

	// 150 was the cap of the baseline but the second raise is banded
	// against 120: anything up to 180 goes through.
	if _, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1", UserID: "user-1", NewFare: 180,
	}); err != nil {
		t.Fatalf("second raise failed: %v", err)
	}

	_, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1", UserID: "user-1", NewFare: 170,
	})
	if _, ok := negotiation.AsBandError(err); !ok {
		t.Errorf("expected BandError for non-increasing raise, got %v", err)
	}
}

func TestRaise_ExhaustedAttemptsLeaveBookingPending(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	for _, fare := range []float64{110, 120, 130} {
		if _, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
			BookingID: "booking-1", UserID: "user-1", NewFare: fare,
		}); err != nil {
			t.Fatalf("raise to %.2f failed: %v", fare, err)
		}
	}

	_, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1", UserID: "user-1", NewFare: 140,
	})
	if !errors.Is(err, negotiation.ErrResendExhausted) {
		t.Fatalf("expected ErrResendExhausted, got %v", err)
	}

	// Exhaustion never cancels: the requester decides what happens next.
	if got := f.bookings.GetBooking("booking-1").Status; got != domain.BookingStatusPending {
		t.Errorf("expected booking to stay pending, got %s", got)
	}
}

func TestRaise_OnlyOwnerMayRaise(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	_, _, err := f.machine.Raise(ctx, negotiation.RaiseRequest{
		BookingID: "booking-1", UserID: "user-2", NewFare: 120,
	})
	if !errors.Is(err, negotiation.ErrNotParty) {
		t.Errorf("expected ErrNotParty, got %v", err)
	}
}

func TestCancel_UserChargedByMilestone(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	d := f.onlineDriver("driver-1", 25.201, 55.271)
	d.Status = domain.DriverStatusOnTrip

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	got, charge, err := f.machine.Cancel(ctx, negotiation.CancelRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Reason:    "change of plans",
		Milestone: domain.MilestoneHalfDistance,
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got.Status != domain.BookingStatusCancelled {
		t.Errorf("expected cancelled status, got %s", got.Status)
	}
	if charge != 20 {
		t.Errorf("expected half-distance charge 20, got %.2f", charge)
	}

	// The freed driver goes back into the pool.
	if st := f.drivers.GetDriver("driver-1").Status; st != domain.DriverStatusOnline {
		t.Errorf("expected driver back online, got %s", st)
	}

	events := f.publisher.EventsNamed("booking_cancelled")
	if len(events) != 1 {
		t.Fatalf("expected 1 cancellation event, got %d", len(events))
	}
	if events[0].Room != realtime.DriverRoom("driver-1") {
		t.Errorf("expected cancellation routed to the driver, got room %s", events[0].Room)
	}
}

func TestCancel_UnassignedBookingIsFree(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	_, charge, err := f.machine.Cancel(ctx, negotiation.CancelRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Milestone: domain.MilestoneAfterArrival,
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if charge != 0 {
		t.Errorf("cancelling before assignment must be free, got %.2f", charge)
	}
}

func TestCancel_DriverCancellationIsFree(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	f.onlineDriver("driver-1", 25.201, 55.271)
	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	_, charge, err := f.machine.Cancel(ctx, negotiation.CancelRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorDriver,
		ActorID:   "driver-1",
		Reason:    "vehicle breakdown",
		Milestone: domain.MilestoneHalfDistance,
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if charge != 0 {
		t.Errorf("driver cancellation must be free, got %.2f", charge)
	}

	events := f.publisher.EventsNamed("booking_cancelled")
	if len(events) != 1 {
		t.Fatalf("expected 1 cancellation event, got %d", len(events))
	}
	if events[0].Room != realtime.UserRoom("user-1") {
		t.Errorf("expected cancellation routed to the requester, got room %s", events[0].Room)
	}
}

func TestCancel_StartedRideNotCancellable(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusStarted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	_, _, err := f.machine.Cancel(ctx, negotiation.CancelRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
	})
	if !errors.Is(err, negotiation.ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got %v", err)
	}
}

func TestStart_OnlyAssignedDriver(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	_, err := f.machine.Start(ctx, negotiation.StartRequest{
		BookingID: "booking-1",
		DriverID:  "driver-2",
	})
	if !errors.Is(err, negotiation.ErrNotAssignedDriver) {
		t.Fatalf("expected ErrNotAssignedDriver, got %v", err)
	}

	got, err := f.machine.Start(ctx, negotiation.StartRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got.Status != domain.BookingStatusStarted {
		t.Errorf("expected started status, got %s", got.Status)
	}
}

func TestStart_RequiresAcceptedStatus(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	_, err := f.machine.Start(ctx, negotiation.StartRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if !errors.Is(err, negotiation.ErrBookingNotAccepted) {
		t.Errorf("expected ErrBookingNotAccepted, got %v", err)
	}
}

func TestComplete_GeneratesReceiptAndSchedulesSurvey(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	d := f.onlineDriver("driver-1", 25.201, 55.271)
	d.Status = domain.DriverStatusOnTrip

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusStarted
	b.DriverID = "driver-1"
	b.Fare = 105
	f.bookings.AddBooking(b)

	got, receipt, err := f.machine.Complete(ctx, negotiation.CompleteRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got.Status != domain.BookingStatusCompleted {
		t.Errorf("expected completed status, got %s", got.Status)
	}
	if receipt == nil || receipt.Breakdown.Total != 105 {
		t.Fatalf("expected receipt at the agreed fare, got %+v", receipt)
	}

	stored, err := f.receipts.GetByBookingID(ctx, "booking-1")
	if err != nil || stored == nil {
		t.Errorf("expected persisted receipt: %v", err)
	}

	tasks := f.tasks.Tasks()
	if len(tasks) != 1 || tasks[0].Kind != domain.TaskSurveyReminder {
		t.Fatalf("expected one survey reminder task, got %+v", tasks)
	}
	if tasks[0].RefID != "booking-1" {
		t.Errorf("expected task bound to the booking, got %s", tasks[0].RefID)
	}

	if st := f.drivers.GetDriver("driver-1").Status; st != domain.DriverStatusOnline {
		t.Errorf("expected driver back online, got %s", st)
	}
	if got := len(f.publisher.EventsNamed("booking_completed")); got != 1 {
		t.Errorf("expected 1 completion event, got %d", got)
	}
}

func TestComplete_RequiresStartedStatus(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	_, _, err := f.machine.Complete(ctx, negotiation.CompleteRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if !errors.Is(err, negotiation.ErrBookingNotStarted) {
		t.Errorf("expected ErrBookingNotStarted, got %v", err)
	}
}
