package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"hail/internal/domain"
	"hail/internal/negotiation"
	"hail/internal/realtime"
)

func TestAccept_FirstDriverWins(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	f.onlineDriver("driver-1", 25.20, 55.27)
	f.bookings.AddBooking(pendingBooking("booking-1"))

	b, err := f.machine.Accept(ctx, negotiation.AcceptRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if b.Status != domain.BookingStatusAccepted {
		t.Errorf("expected accepted, got %s", b.Status)
	}
	if b.DriverID != "driver-1" {
		t.Errorf("expected driver-1 assigned, got %q", b.DriverID)
	}
	if b.Fare != 100 {
		t.Errorf("expected fare fixed at 100, got %.2f", b.Fare)
	}

	// Winner's directory status moves to on_trip.
	if got := f.drivers.GetDriver("driver-1").Status; got != domain.DriverStatusOnTrip {
		t.Errorf("expected driver on_trip, got %s", got)
	}

	// Requester is told who won.
	if events := f.publisher.EventsNamed("booking_accepted"); len(events) != 1 {
		t.Fatalf("expected 1 booking_accepted event, got %d", len(events))
	} else if events[0].Room != realtime.UserRoom("user-1") {
		t.Errorf("booking_accepted sent to %s", events[0].Room)
	}
}

func TestAccept_ConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	const drivers = 20
	for i := 0; i < drivers; i++ {
		f.onlineDriver(driverID(i), 25.20, 55.27)
	}
	f.bookings.AddBooking(pendingBooking("booking-1"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.machine.Accept(ctx, negotiation.AcceptRequest{
				BookingID: "booking-1",
				DriverID:  id,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, negotiation.ErrBookingNotPending):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(driverID(i))
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
	if losers != drivers-1 {
		t.Errorf("expected %d losers, got %d", drivers-1, losers)
	}

	b := f.bookings.GetBooking("booking-1")
	if b.Status != domain.BookingStatusAccepted {
		t.Errorf("expected accepted, got %s", b.Status)
	}
	if b.DriverID == "" {
		t.Error("expected a driver assigned")
	}
}

func TestAccept_RejectedDriverCannotAccept(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	f.onlineDriver("driver-1", 25.20, 55.27)
	f.bookings.AddBooking(pendingBooking("booking-1"))

	if err := f.machine.Reject(ctx, negotiation.RejectRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
		Reason:    "too far",
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	_, err := f.machine.Accept(ctx, negotiation.AcceptRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	})
	if !errors.Is(err, negotiation.ErrDriverPreviouslyRejected) {
		t.Errorf("expected ErrDriverPreviouslyRejected, got %v", err)
	}
}

func TestReject_IdempotentAndKeepsBookingPending(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	f.bookings.AddBooking(pendingBooking("booking-1"))

	for i := 0; i < 3; i++ {
		if err := f.machine.Reject(ctx, negotiation.RejectRequest{
			BookingID: "booking-1",
			DriverID:  "driver-1",
		}); err != nil {
			t.Fatalf("reject %d failed: %v", i, err)
		}
	}

	b := f.bookings.GetBooking("booking-1")
	if b.Status != domain.BookingStatusPending {
		t.Errorf("rejection must not change status, got %s", b.Status)
	}
	if len(b.RejectedDrivers) != 1 {
		t.Errorf("expected 1 rejection entry, got %d", len(b.RejectedDrivers))
	}
}

func TestOpenWindow_ExcludesRejectedDrivers(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	f.onlineDriver("driver-1", 25.20, 55.27)
	f.onlineDriver("driver-2", 25.21, 55.28)

	b := pendingBooking("booking-1")
	f.bookings.AddBooking(b)

	if err := f.machine.Reject(ctx, negotiation.RejectRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	fresh := f.bookings.GetBooking("booking-1")
	count, err := f.machine.OpenWindow(ctx, fresh)
	if err != nil {
		t.Fatalf("open window failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 candidate, got %d", count)
	}

	for _, e := range f.publisher.EventsNamed("new_booking_request") {
		if e.Room == realtime.DriverRoom("driver-1") {
			t.Error("rejected driver received a new request")
		}
	}
}

func TestOpenWindow_NoCandidatesReportsToRequester(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	f.bookings.AddBooking(b)

	_, err := f.machine.OpenWindow(ctx, b)
	if !errors.Is(err, negotiation.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}

	events := f.publisher.EventsNamed("no_drivers_available")
	if len(events) != 1 {
		t.Fatalf("expected 1 no_drivers_available event, got %d", len(events))
	}
	if events[0].Room != realtime.UserRoom("user-1") {
		t.Errorf("no_drivers_available sent to %s", events[0].Room)
	}
}

func driverID(i int) string {
	return "driver-" + string(rune('a'+i))
}
