package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"hail/internal/domain"
	"hail/internal/negotiation"
	"hail/internal/realtime"
)

func TestSubmitOffer_WithinBandAccepted(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	for _, amount := range []float64{97, 100, 103} {
		b := pendingBooking("booking-" + floatTag(amount))
		f.bookings.AddBooking(b)

		_, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
			BookingID: b.ID,
			DriverID:  "driver-1",
			Amount:    amount,
		})
		if err != nil {
			t.Errorf("offer of %.2f on fare 100 should be accepted: %v", amount, err)
		}
	}
}

func TestSubmitOffer_OutsideBandRejectedWithBounds(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	_, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
		Amount:    96.99,
	})
	band, ok := negotiation.AsBandError(err)
	if !ok {
		t.Fatalf("expected BandError, got %v", err)
	}
	if band.Min != 97 || band.Max != 103 {
		t.Errorf("expected band [97, 103], got [%.2f, %.2f]", band.Min, band.Max)
	}

	// Nothing was recorded and the requester saw no offer update.
	if got := len(f.bookings.GetBooking("booking-1").DriverOffers); got != 0 {
		t.Errorf("expected no offers stored, got %d", got)
	}
	if got := len(f.publisher.EventsNamed("driver_offers_updated")); got != 0 {
		t.Errorf("expected no offer updates, got %d", got)
	}
}

func TestSubmitOffer_BandFollowsRaisedFare(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.RaisedFare = 120
	f.bookings.AddBooking(b)

	// 103 was in band for the baseline 100 but not for the raised 120.
	_, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
		Amount:    103,
	})
	if _, ok := negotiation.AsBandError(err); !ok {
		t.Fatalf("expected BandError against raised fare, got %v", err)
	}

	if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1",
		DriverID:  "driver-1",
		Amount:    120,
	}); err != nil {
		t.Errorf("offer at raised fare should be accepted: %v", err)
	}
}

func TestSubmitOffer_SecondPendingOfferBlocked(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1", DriverID: "driver-1", Amount: 100,
	}); err != nil {
		t.Fatalf("first offer failed: %v", err)
	}

	_, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1", DriverID: "driver-1", Amount: 101,
	})
	if !errors.Is(err, negotiation.ErrPendingOfferExists) {
		t.Errorf("expected ErrPendingOfferExists, got %v", err)
	}

	// A different driver can still offer.
	if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1", DriverID: "driver-2", Amount: 99,
	}); err != nil {
		t.Errorf("second driver's offer failed: %v", err)
	}
}

func TestSubmitOffer_ExpiredOfferIgnoredOnRead(t *testing.T) {
	ctx := context.Background()
	// Offers expire immediately.
	cfg := negotiation.DefaultConfig()
	cfg.OfferTTL = -time.Minute
	f := newFixture(cfg)
	f.bookings.AddBooking(pendingBooking("booking-1"))

	if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1", DriverID: "driver-1", Amount: 100,
	}); err != nil {
		t.Fatalf("first offer failed: %v", err)
	}

	// The expired first offer does not block a new one.
	if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
		BookingID: "booking-1", DriverID: "driver-1", Amount: 101,
	}); err != nil {
		t.Errorf("expected expired offer to be passed over, got %v", err)
	}
}

func TestSubmitOffer_FullOfferSetSentToRequester(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	for i, amount := range []float64{98, 100, 102} {
		if _, err := f.machine.SubmitOffer(ctx, negotiation.OfferRequest{
			BookingID: "booking-1",
			DriverID:  driverID(i),
			Amount:    amount,
		}); err != nil {
			t.Fatalf("offer %d failed: %v", i, err)
		}
	}

	events := f.publisher.EventsNamed("driver_offers_updated")
	if len(events) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(events))
	}
	last, ok := events[2].Payload.(realtime.DriverOffersUpdated)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[2].Payload)
	}
	if len(last.Offers) != 3 {
		t.Errorf("expected full set of 3 offers in last update, got %d", len(last.Offers))
	}
}

func TestPropose_SingleOpenProposal(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Amount:    98,
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	_, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Amount:    99,
	})
	if !errors.Is(err, negotiation.ErrOpenProposalExists) {
		t.Errorf("expected ErrOpenProposalExists, got %v", err)
	}
}

func TestPropose_NonPartyRejected(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	_, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "someone-else",
		Amount:    98,
	})
	if !errors.Is(err, negotiation.ErrNotParty) {
		t.Errorf("expected ErrNotParty, got %v", err)
	}
}

func TestRespond_SelfResponseRejected(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Amount:    98,
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	_, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Action:    negotiation.ResponseAccept,
	})
	if !errors.Is(err, negotiation.ErrSelfResponse) {
		t.Errorf("expected ErrSelfResponse, got %v", err)
	}
}

func TestRespond_AcceptFixesFareAndStartsRide(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorDriver,
		ActorID:   "driver-1",
		Amount:    102,
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	got, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Action:    negotiation.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if got.Fare != 102 {
		t.Errorf("expected fare 102 after acceptance, got %.2f", got.Fare)
	}
	if got.Status != domain.BookingStatusStarted {
		t.Errorf("expected auto-start to started, got %s", got.Status)
	}

	if got := len(f.publisher.EventsNamed("fare_negotiation_accepted")); got != 1 {
		t.Errorf("expected 1 fare_negotiation_accepted event, got %d", got)
	}
	if got := len(f.publisher.EventsNamed("booking_started")); got != 1 {
		t.Errorf("expected 1 booking_started event, got %d", got)
	}
}

func TestRespond_RejectLeavesFareUnchanged(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorDriver,
		ActorID:   "driver-1",
		Amount:    102,
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	got, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Action:    negotiation.ResponseReject,
	})
	if err != nil {
		t.Fatalf("respond failed: %v", err)
	}
	if got.Fare != 0 {
		t.Errorf("reject must not set a fare, got %.2f", got.Fare)
	}

	// The window is closed: a fresh proposal is allowed again.
	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Amount:    99,
	}); err != nil {
		t.Errorf("new proposal after reject failed: %v", err)
	}
}

func TestRespond_CounterBandRelativeToOriginalFare(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()

	b := pendingBooking("booking-1")
	b.Status = domain.BookingStatusAccepted
	b.DriverID = "driver-1"
	f.bookings.AddBooking(b)

	if _, err := f.machine.Propose(ctx, negotiation.ProposeRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Amount:    97,
	}); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	// The counter is bounded by the original fare's band, not the
	// proposal's: 97 * 1.03 would allow 99.91, but 103 is still fine
	// because the reference stays 100.
	if _, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorDriver,
		ActorID:   "driver-1",
		Action:    negotiation.ResponseCounter,
		Amount:    103,
	}); err != nil {
		t.Fatalf("counter at original-band edge failed: %v", err)
	}

	// And a counter past the original band fails even if close to the
	// last proposal.
	got, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Action:    negotiation.ResponseCounter,
		Amount:    104,
	})
	if _, ok := negotiation.AsBandError(err); !ok {
		t.Errorf("expected BandError for counter 104, got %v (%v)", err, got)
	}
}

func TestRespond_NoOpenProposal(t *testing.T) {
	ctx := context.Background()
	f := defaultFixture()
	f.bookings.AddBooking(pendingBooking("booking-1"))

	_, err := f.machine.Respond(ctx, negotiation.RespondRequest{
		BookingID: "booking-1",
		Actor:     domain.ActorUser,
		ActorID:   "user-1",
		Action:    negotiation.ResponseAccept,
	})
	if !errors.Is(err, negotiation.ErrNoOpenProposal) {
		t.Errorf("expected ErrNoOpenProposal, got %v", err)
	}
}

func floatTag(v float64) string {
	switch v {
	case 97:
		return "97"
	case 100:
		return "100"
	case 103:
		return "103"
	}
	return "x"
}
