package negotiation

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hail/internal/directory"
	"hail/internal/domain"
	"hail/internal/pricing"
	"hail/internal/realtime"
	"hail/internal/redis"
	"hail/internal/repository"
)

// Config tunes the negotiation machine.
type Config struct {
	// OfferTTL is the advisory expiry stamped on fan-out requests, driver
	// offers and negotiation proposals. Expiry is enforced lazily, on read.
	OfferTTL time.Duration

	// OfferBandPercent bounds driver fare offers relative to the current
	// offered/raised fare.
	OfferBandPercent float64

	// NegotiationBandPercent is the admin-configured adjustment band for
	// bargaining proposals, relative to the original fare.
	NegotiationBandPercent float64

	// RaiseCapPercent caps each fare raise relative to the preceding fare.
	RaiseCapPercent float64

	// WindowLockTTL bounds how long one matching fan-out may hold the
	// booking's lock.
	WindowLockTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OfferTTL:               2 * time.Minute,
		OfferBandPercent:       3,
		NegotiationBandPercent: 3,
		RaiseCapPercent:        150,
		WindowLockTTL:          30 * time.Second,
	}
}

// ReceiptGenerator produces the durable itemized record on completion.
type ReceiptGenerator interface {
	Generate(ctx context.Context, b *domain.Booking) (*domain.Receipt, error)
}

// SurveyScheduler schedules the deferred post-service survey reminder.
type SurveyScheduler interface {
	ScheduleSurvey(ctx context.Context, b *domain.Booking) error
}

// Machine owns the lifecycle of a booking's matching and negotiation:
// pending -> accepted -> started -> completed, with cancellation from
// pending or accepted. Every transition re-validates preconditions against
// a freshly loaded aggregate and then performs a single atomic conditional
// write; a guard miss means the caller lost a race.
type Machine struct {
	bookings repository.BookingRepository
	drivers  repository.DriverRepository
	query    *directory.Query
	pricer   *pricing.Service
	notifier *realtime.Notifier
	locks    redis.LockStoreInterface
	receipts ReceiptGenerator
	surveys  SurveyScheduler
	log      *zap.Logger
	cfg      Config

	now func() time.Time
}

// NewMachine creates a negotiation Machine.
func NewMachine(
	bookings repository.BookingRepository,
	drivers repository.DriverRepository,
	query *directory.Query,
	pricer *pricing.Service,
	notifier *realtime.Notifier,
	locks redis.LockStoreInterface,
	receipts ReceiptGenerator,
	surveys SurveyScheduler,
	log *zap.Logger,
	cfg Config,
) *Machine {
	return &Machine{
		bookings: bookings,
		drivers:  drivers,
		query:    query,
		pricer:   pricer,
		notifier: notifier,
		locks:    locks,
		receipts: receipts,
		surveys:  surveys,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// OpenWindow broadcasts a pending booking to its candidate drivers and
// returns how many were reached. Zero candidates yields ErrNoCandidates
// and a no_drivers_available report to the requester; no dangling window
// is left behind.
func (m *Machine) OpenWindow(ctx context.Context, b *domain.Booking) (int, error) {
	if b.Status != domain.BookingStatusPending {
		return 0, ErrBookingNotPending
	}

	if m.locks != nil {
		locked, err := m.locks.AcquireBookingLock(ctx, b.ID, m.cfg.WindowLockTTL)
		if err != nil {
			return 0, err
		}
		if !locked {
			return 0, ErrMatchingInProgress
		}
		defer func() {
			if err := m.locks.ReleaseBookingLock(ctx, b.ID); err != nil {
				m.log.Warn("release booking lock failed", zap.String("booking_id", b.ID), zap.Error(err))
			}
		}()
	}

	candidates, err := m.query.FindCandidates(ctx, directory.Request{
		Pickup:          b.Pickup,
		ServiceType:     b.ServiceType,
		VehicleType:     b.VehicleType,
		Preference:      b.Preference,
		PinkCaptain:     b.PinkCaptain,
		PinnedDriverID:  b.PinnedDriverID,
		ExcludedDrivers: b.RejectedDriverIDs(),
	})
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		m.notifier.NoDrivers(ctx, b)
		return 0, ErrNoCandidates
	}

	expiresAt := m.now().Add(m.cfg.OfferTTL)
	for _, c := range candidates {
		m.notifier.BookingRequested(ctx, b, c.Driver.ID, c.DistanceKm, expiresAt)
	}

	m.log.Info("matching window opened",
		zap.String("booking_id", b.ID),
		zap.Int("candidates", len(candidates)),
		zap.Float64("fare", b.CurrentFare()))
	return len(candidates), nil
}

// AcceptRequest identifies the driver accepting a booking.
type AcceptRequest struct {
	BookingID string
	DriverID  string
}

// Accept is the exclusive check-then-set acceptance: it succeeds only if
// the booking is still pending at write time. Under concurrent attempts
// exactly one driver wins; the rest get ErrBookingNotPending.
func (m *Machine) Accept(ctx context.Context, req AcceptRequest) (*domain.Booking, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusPending {
		return nil, ErrBookingNotPending
	}
	if b.HasRejected(req.DriverID) {
		return nil, ErrDriverPreviouslyRejected
	}

	fare := b.CurrentFare()
	at := m.now()
	won, err := m.bookings.Accept(ctx, b.ID, req.DriverID, fare, at)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another driver got there first.
		return nil, ErrBookingNotPending
	}

	b.Status = domain.BookingStatusAccepted
	b.DriverID = req.DriverID
	b.Fare = fare
	b.AcceptedAt = at

	if err := m.drivers.UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnTrip); err != nil && !errors.Is(err, repository.ErrNotFound) {
		m.log.Warn("driver status update failed", zap.String("driver_id", req.DriverID), zap.Error(err))
	}

	var driverName string
	if d, err := m.drivers.GetByID(ctx, req.DriverID); err == nil {
		driverName = d.Name
	}
	m.notifier.BookingAccepted(ctx, b, driverName)

	m.log.Info("booking accepted",
		zap.String("booking_id", b.ID),
		zap.String("driver_id", req.DriverID),
		zap.Float64("fare", fare))
	return b, nil
}

// RejectRequest records a driver declining a booking.
type RejectRequest struct {
	BookingID string
	DriverID  string
	Reason    string
}

// Reject appends the driver to the rejected list. Idempotent, and never
// changes the booking status; the driver is excluded from every later
// candidate list for this booking.
func (m *Machine) Reject(ctx context.Context, req RejectRequest) error {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return err
	}
	if b.HasRejected(req.DriverID) {
		return nil
	}
	return m.bookings.AppendRejection(ctx, b.ID, domain.DriverRejection{
		DriverID:   req.DriverID,
		Reason:     req.Reason,
		RejectedAt: m.now(),
	})
}

// OfferRequest is a driver's fare proposal for a pending booking.
type OfferRequest struct {
	BookingID string
	DriverID  string
	Amount    float64
}

// SubmitOffer validates a driver fare offer against the ±band around the
// current offered/raised fare and appends it. The requester is then sent
// the full set of live offers, not just the new one.
func (m *Machine) SubmitOffer(ctx context.Context, req OfferRequest) (*domain.Booking, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.BookingStatusPending {
		return nil, ErrBookingNotPending
	}
	if b.HasRejected(req.DriverID) {
		return nil, ErrDriverPreviouslyRejected
	}
	if open := b.PendingOfferBy(req.DriverID); open != nil && !m.expired(open.ExpiresAt) {
		return nil, ErrPendingOfferExists
	}

	if err := checkBand(req.Amount, b.CurrentFare(), m.cfg.OfferBandPercent); err != nil {
		return nil, err
	}

	offer := domain.DriverOffer{
		ID:        uuid.New().String(),
		DriverID:  req.DriverID,
		Amount:    round2(req.Amount),
		Status:    domain.OfferPending,
		CreatedAt: m.now(),
		ExpiresAt: m.now().Add(m.cfg.OfferTTL),
	}
	ok, err := m.bookings.AppendOffer(ctx, b.ID, offer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBookingNotPending
	}

	b.DriverOffers = append(b.DriverOffers, offer)
	m.notifier.OffersUpdated(ctx, b)
	return b, nil
}

// ProposeRequest opens a bargaining round from one side.
type ProposeRequest struct {
	BookingID string
	Actor     domain.ActorRole
	ActorID   string
	Amount    float64
}

// Propose appends a pending ledger entry. Only one proposal may be open
// per booking; the band is relative to the original computed fare, not the
// most recent counter.
func (m *Machine) Propose(ctx context.Context, req ProposeRequest) (*domain.Booking, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(req.Actor, req.ActorID) {
		return nil, ErrNotParty
	}
	if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusAccepted {
		return nil, ErrBookingNotPending
	}
	if open := b.OpenProposal(); open != nil && !m.expired(open.ExpiresAt) {
		return nil, ErrOpenProposalExists
	}

	if err := checkBand(req.Amount, b.OfferedFare, m.cfg.NegotiationBandPercent); err != nil {
		return nil, err
	}

	entry := domain.NegotiationEntry{
		ID:        uuid.New().String(),
		Actor:     req.Actor,
		ActorID:   req.ActorID,
		Kind:      domain.NegotiationPropose,
		Amount:    round2(req.Amount),
		CreatedAt: m.now(),
		ExpiresAt: m.now().Add(m.cfg.OfferTTL),
	}
	if err := m.bookings.AppendLedgerEntry(ctx, b.ID, entry); err != nil {
		return nil, err
	}

	b.NegotiationLedger = append(b.NegotiationLedger, entry)
	m.notifier.NegotiationEvent(ctx, b, entry)
	return b, nil
}

// ResponseAction is how a counterparty answers an open proposal.
type ResponseAction string

const (
	ResponseAccept  ResponseAction = "accept"
	ResponseReject  ResponseAction = "reject"
	ResponseCounter ResponseAction = "counter"
)

// RespondRequest answers the open proposal on a booking.
type RespondRequest struct {
	BookingID string
	Actor     domain.ActorRole
	ActorID   string
	Action    ResponseAction
	Amount    float64 // counter only
}

// Respond settles or re-opens the negotiation window. Accept fixes the
// fare at the proposed amount and, when the booking was accepted and only
// blocked on fare agreement, auto-transitions it to started. Reject leaves
// the fare unchanged. Counter appends a new pending entry from the
// responding side.
func (m *Machine) Respond(ctx context.Context, req RespondRequest) (*domain.Booking, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(req.Actor, req.ActorID) {
		return nil, ErrNotParty
	}

	open := b.OpenProposal()
	if open == nil {
		return nil, ErrNoOpenProposal
	}
	if open.Actor == req.Actor {
		return nil, ErrSelfResponse
	}
	if m.expired(open.ExpiresAt) {
		return nil, ErrProposalExpired
	}

	switch req.Action {
	case ResponseAccept:
		entry := m.ledgerEntry(req, domain.NegotiationAccept, open.Amount)
		if err := m.bookings.AppendLedgerEntry(ctx, b.ID, entry); err != nil {
			return nil, err
		}
		if err := m.bookings.SetFare(ctx, b.ID, open.Amount); err != nil {
			return nil, err
		}
		b.NegotiationLedger = append(b.NegotiationLedger, entry)
		b.Fare = open.Amount
		m.notifier.NegotiationEvent(ctx, b, entry)

		if b.Status == domain.BookingStatusAccepted {
			at := m.now()
			started, err := m.bookings.Start(ctx, b.ID, b.DriverID, at)
			if err != nil {
				return nil, err
			}
			if started {
				b.Status = domain.BookingStatusStarted
				b.StartedAt = at
				m.notifier.BookingStarted(ctx, b)
			}
		}
		return b, nil

	case ResponseReject:
		entry := m.ledgerEntry(req, domain.NegotiationReject, 0)
		if err := m.bookings.AppendLedgerEntry(ctx, b.ID, entry); err != nil {
			return nil, err
		}
		b.NegotiationLedger = append(b.NegotiationLedger, entry)
		m.notifier.NegotiationEvent(ctx, b, entry)
		return b, nil

	case ResponseCounter:
		if err := checkBand(req.Amount, b.OfferedFare, m.cfg.NegotiationBandPercent); err != nil {
			return nil, err
		}
		entry := m.ledgerEntry(req, domain.NegotiationCounter, round2(req.Amount))
		entry.ExpiresAt = m.now().Add(m.cfg.OfferTTL)
		if err := m.bookings.AppendLedgerEntry(ctx, b.ID, entry); err != nil {
			return nil, err
		}
		b.NegotiationLedger = append(b.NegotiationLedger, entry)
		m.notifier.NegotiationEvent(ctx, b, entry)
		return b, nil
	}
	return nil, ErrNoOpenProposal
}

func (m *Machine) ledgerEntry(req RespondRequest, kind domain.NegotiationKind, amount float64) domain.NegotiationEntry {
	return domain.NegotiationEntry{
		ID:        uuid.New().String(),
		Actor:     req.Actor,
		ActorID:   req.ActorID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: m.now(),
	}
}

// RaiseRequest escalates the fare after a failed matching round.
type RaiseRequest struct {
	BookingID string
	UserID    string
	NewFare   float64
}

// Raise records a user fare escalation and re-opens the matching window.
// Only valid while pending and under the attempt cap; each raise must
// strictly increase the fare and stay within the cap of the preceding one.
// Exhausted attempts surface as ErrResendExhausted, never as an automatic
// cancellation.
func (m *Machine) Raise(ctx context.Context, req RaiseRequest) (*domain.Booking, int, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, 0, err
	}
	if b.UserID != req.UserID {
		return nil, 0, ErrNotParty
	}
	if b.Status != domain.BookingStatusPending {
		return nil, 0, ErrBookingNotPending
	}
	if b.ResendAttempts >= b.MaxResendAttempts {
		return nil, 0, ErrResendExhausted
	}

	current := b.CurrentFare()
	cap := round2(current * m.cfg.RaiseCapPercent / 100)
	if req.NewFare <= current || req.NewFare > cap+bandEpsilon {
		return nil, 0, &BandError{Amount: req.NewFare, Min: current, Max: cap}
	}

	raise := domain.FareRaise{Amount: round2(req.NewFare), RaisedAt: m.now()}
	ok, err := m.bookings.RecordFareRaise(ctx, b.ID, raise, b.MaxResendAttempts)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrBookingNotPending
	}

	b.RaisedFare = raise.Amount
	b.FareRaises = append(b.FareRaises, raise)
	b.ResendAttempts++

	count, err := m.OpenWindow(ctx, b)
	if err != nil && !errors.Is(err, ErrNoCandidates) {
		return nil, 0, err
	}
	return b, count, nil
}

// CancelRequest cancels a booking before completion.
type CancelRequest struct {
	BookingID string
	Actor     domain.ActorRole
	ActorID   string
	Reason    string
	Milestone domain.TripMilestone
}

// Cancel moves the booking to cancelled from pending or accepted. A
// requester cancellation of an assigned booking carries the milestone-
// tiered charge; driver cancellations are always free. The opposite party
// is notified.
func (m *Machine) Cancel(ctx context.Context, req CancelRequest) (*domain.Booking, float64, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, 0, err
	}
	if !b.IsParty(req.Actor, req.ActorID) {
		return nil, 0, ErrNotParty
	}
	if b.Status != domain.BookingStatusPending && b.Status != domain.BookingStatusAccepted {
		return nil, 0, ErrNotCancellable
	}

	var charge float64
	if req.Actor == domain.ActorUser && b.DriverID != "" {
		bd, err := m.pricer.Quote(ctx, pricing.Input{
			ServiceType:     b.ServiceType,
			VehicleType:     b.VehicleType,
			ServiceCategory: b.ServiceCategory,
			DistanceKm:      b.DistanceKm,
			RouteType:       b.RouteType,
			Modifiers: domain.FareModifiers{
				Cancellation: &domain.CancellationContext{Milestone: req.Milestone},
			},
		})
		if err != nil {
			return nil, 0, err
		}
		charge = bd.CancellationCharge
	}

	at := m.now()
	ok, err := m.bookings.Cancel(ctx, b.ID, req.ActorID, req.Reason, at)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrNotCancellable
	}

	b.Status = domain.BookingStatusCancelled
	b.CancelledBy = req.ActorID
	b.CancelReason = req.Reason
	b.CancelledAt = at
	m.notifier.BookingCancelled(ctx, b, charge)

	if b.DriverID != "" {
		if err := m.drivers.UpdateStatus(ctx, b.DriverID, domain.DriverStatusOnline); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.log.Warn("driver status reset failed", zap.String("driver_id", b.DriverID), zap.Error(err))
		}
	}
	return b, charge, nil
}

// StartRequest begins the ride.
type StartRequest struct {
	BookingID string
	DriverID  string
}

// Start transitions accepted -> started; only the assigned driver may do
// it.
func (m *Machine) Start(ctx context.Context, req StartRequest) (*domain.Booking, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if b.DriverID != req.DriverID {
		return nil, ErrNotAssignedDriver
	}
	if b.Status != domain.BookingStatusAccepted {
		return nil, ErrBookingNotAccepted
	}

	at := m.now()
	ok, err := m.bookings.Start(ctx, b.ID, req.DriverID, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBookingNotAccepted
	}

	b.Status = domain.BookingStatusStarted
	b.StartedAt = at
	m.notifier.BookingStarted(ctx, b)
	return b, nil
}

// CompleteRequest finishes the ride.
type CompleteRequest struct {
	BookingID string
	DriverID  string
}

// Complete transitions started/in_progress -> completed, generates the
// itemized receipt and schedules the post-service survey reminder. The
// receipt is the durable record consumers rely on once negotiation state
// stops mattering.
func (m *Machine) Complete(ctx context.Context, req CompleteRequest) (*domain.Booking, *domain.Receipt, error) {
	b, err := m.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.DriverID != req.DriverID {
		return nil, nil, ErrNotAssignedDriver
	}
	if b.Status != domain.BookingStatusStarted && b.Status != domain.BookingStatusInProgress {
		return nil, nil, ErrBookingNotStarted
	}

	at := m.now()
	ok, err := m.bookings.Complete(ctx, b.ID, req.DriverID, at)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrBookingNotStarted
	}

	b.Status = domain.BookingStatusCompleted
	b.CompletedAt = at

	if err := m.drivers.UpdateStatus(ctx, req.DriverID, domain.DriverStatusOnline); err != nil && !errors.Is(err, repository.ErrNotFound) {
		m.log.Warn("driver status reset failed", zap.String("driver_id", req.DriverID), zap.Error(err))
	}

	receipt, err := m.receipts.Generate(ctx, b)
	if err != nil {
		m.log.Error("receipt generation failed", zap.String("booking_id", b.ID), zap.Error(err))
	}
	if err := m.surveys.ScheduleSurvey(ctx, b); err != nil {
		m.log.Error("survey scheduling failed", zap.String("booking_id", b.ID), zap.Error(err))
	}

	m.notifier.BookingCompleted(ctx, b)
	return b, receipt, nil
}

func (m *Machine) expired(at time.Time) bool {
	return !at.IsZero() && m.now().After(at)
}

const bandEpsilon = 1e-9

// checkBand validates amount against ±percent of the reference fare.
// Amounts exactly on a bound are accepted.
func checkBand(amount, reference, percent float64) error {
	min := round2(reference * (100 - percent) / 100)
	max := round2(reference * (100 + percent) / 100)
	if amount < min-bandEpsilon || amount > max+bandEpsilon {
		return &BandError{Amount: amount, Min: min, Max: max}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
