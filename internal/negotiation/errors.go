package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrBookingNotPending is returned when an operation requires a pending
	// booking, including a driver losing the acceptance race.
	ErrBookingNotPending = errors.New("booking is no longer pending")

	// ErrBookingNotAccepted is returned when starting a booking that is not
	// in the accepted state.
	ErrBookingNotAccepted = errors.New("booking not accepted")

	// ErrBookingNotStarted is returned when completing a booking that was
	// never started.
	ErrBookingNotStarted = errors.New("booking not started")

	// ErrNotCancellable is returned when the booking has progressed past
	// the cancellable states.
	ErrNotCancellable = errors.New("booking cannot be cancelled in current state")

	// ErrNotParty is returned when the actor does not belong to the booking.
	ErrNotParty = errors.New("actor is not a party to this booking")

	// ErrNotAssignedDriver is returned when a driver other than the
	// assigned one drives a ride transition.
	ErrNotAssignedDriver = errors.New("driver not assigned to this booking")

	// ErrDriverPreviouslyRejected is returned when a driver who declined
	// the booking tries to act on it again.
	ErrDriverPreviouslyRejected = errors.New("driver previously rejected this booking")

	// ErrPendingOfferExists is returned when a driver already has an open
	// fare offer on the booking.
	ErrPendingOfferExists = errors.New("driver already has a pending offer")

	// ErrOpenProposalExists is returned when a new proposal arrives while
	// one is still awaiting a response.
	ErrOpenProposalExists = errors.New("a fare proposal is already awaiting response")

	// ErrNoOpenProposal is returned when responding with no proposal open.
	ErrNoOpenProposal = errors.New("no open fare proposal")

	// ErrProposalExpired is returned when responding to a proposal past
	// its expiry.
	ErrProposalExpired = errors.New("fare proposal has expired")

	// ErrSelfResponse is returned when the proposer tries to answer their
	// own proposal.
	ErrSelfResponse = errors.New("cannot respond to own proposal")

	// ErrResendExhausted is returned when the fare-raise attempt cap is
	// reached. The booking stays pending.
	ErrResendExhausted = errors.New("maximum resend attempts reached")

	// ErrNoCandidates is returned when a matching window finds zero
	// eligible drivers. It is an expected outcome, not a failure.
	ErrNoCandidates = errors.New("no drivers available")

	// ErrMatchingInProgress is returned when another process holds the
	// booking's matching lock.
	ErrMatchingInProgress = errors.New("matching already in progress for booking")
)

// BandError reports an amount outside its allowed band together with the
// valid bounds so clients can correct and resubmit without guessing.
type BandError struct {
	Amount float64
	Min    float64
	Max    float64
}

func (e *BandError) Error() string {
	return fmt.Sprintf("amount %.2f outside allowed band [%.2f, %.2f]", e.Amount, e.Min, e.Max)
}

// AsBandError unwraps a BandError from err, if one is there.
func AsBandError(err error) (*BandError, bool) {
	var be *BandError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
