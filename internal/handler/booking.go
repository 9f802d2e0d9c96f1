package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/domain"
	"hail/internal/negotiation"
	"hail/internal/service"
)

// BookingHandler handles HTTP requests for bookings and their matching
// and negotiation lifecycle.
type BookingHandler struct {
	bookingService *service.BookingService
	receiptService *service.ReceiptService
	machine        *negotiation.Machine
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService, receiptService *service.ReceiptService, machine *negotiation.Machine) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		receiptService: receiptService,
		machine:        machine,
	}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	UserID string `json:"user_id" binding:"required"`

	Pickup  domain.Location `json:"pickup" binding:"required"`
	Dropoff domain.Location `json:"dropoff" binding:"required"`

	ServiceType     string `json:"service_type" binding:"required"`
	VehicleType     string `json:"vehicle_type" binding:"required"`
	ServiceCategory string `json:"service_category,omitempty"`
	RouteType       string `json:"route_type,omitempty"`

	Preference     string                    `json:"preference,omitempty"`
	PinkCaptain    domain.PinkCaptainOptions `json:"pink_captain,omitempty"`
	PinnedDriverID string                    `json:"pinned_driver_id,omitempty"`

	HelperRequested bool    `json:"helper_requested,omitempty"`
	StayMinutes     float64 `json:"stay_minutes,omitempty"`
	StairsFloors    int     `json:"stairs_floors,omitempty"`
	LiftItems       int     `json:"lift_items,omitempty"`
	PackingItems    int     `json:"packing_items,omitempty"`
	FixingItems     int     `json:"fixing_items,omitempty"`
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	DriverID        string          `json:"driver_id,omitempty"`
	Pickup          domain.Location `json:"pickup"`
	Dropoff         domain.Location `json:"dropoff"`
	ServiceType     string          `json:"service_type"`
	VehicleType     string          `json:"vehicle_type"`
	ServiceCategory string          `json:"service_category,omitempty"`
	RouteType       string          `json:"route_type"`
	Status          string          `json:"status"`
	OfferedFare     float64         `json:"offered_fare"`
	RaisedFare      float64         `json:"raised_fare,omitempty"`
	Fare            float64         `json:"fare,omitempty"`
	CurrentFare     float64         `json:"current_fare"`
	DistanceKm      float64         `json:"distance_km"`
	ResendAttempts  int             `json:"resend_attempts"`
	CreatedAt       time.Time       `json:"created_at"`
}

func bookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		DriverID:        b.DriverID,
		Pickup:          b.Pickup,
		Dropoff:         b.Dropoff,
		ServiceType:     string(b.ServiceType),
		VehicleType:     string(b.VehicleType),
		ServiceCategory: string(b.ServiceCategory),
		RouteType:       string(b.RouteType),
		Status:          string(b.Status),
		OfferedFare:     b.OfferedFare,
		RaisedFare:      b.RaisedFare,
		Fare:            b.Fare,
		CurrentFare:     b.CurrentFare(),
		DistanceKm:      b.DistanceKm,
		ResendAttempts:  b.ResendAttempts,
		CreatedAt:       b.CreatedAt,
	}
}

// CreateBookingResponse is the HTTP response for creating a booking.
type CreateBookingResponse struct {
	Booking    BookingResponse       `json:"booking"`
	Breakdown  *domain.FareBreakdown `json:"breakdown"`
	Candidates int                   `json:"candidates_notified"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		UserID:          req.UserID,
		Pickup:          req.Pickup,
		Dropoff:         req.Dropoff,
		ServiceType:     domain.ServiceType(req.ServiceType),
		VehicleType:     domain.VehicleType(req.VehicleType),
		ServiceCategory: domain.ServiceCategory(req.ServiceCategory),
		RouteType:       domain.RouteType(req.RouteType),
		Preference:      domain.DriverPreference(req.Preference),
		PinkCaptain:     req.PinkCaptain,
		PinnedDriverID:  req.PinnedDriverID,
		HelperRequested: req.HelperRequested,
		StayMinutes:     req.StayMinutes,
		StairsFloors:    req.StairsFloors,
		LiftItems:       req.LiftItems,
		PackingItems:    req.PackingItems,
		FixingItems:     req.FixingItems,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateBookingResponse{
		Booking:    bookingResponse(result.Booking),
		Breakdown:  result.Breakdown,
		Candidates: result.Candidates,
	})
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, err := h.bookingService.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, bookingResponse(b))
}

// AcceptBookingRequest is the HTTP request body for accepting a booking.
type AcceptBookingRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// AcceptBooking handles POST /v1/bookings/:id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	var req AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.machine.Accept(c.Request.Context(), negotiation.AcceptRequest{
		BookingID: c.Param("id"),
		DriverID:  req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, bookingResponse(b))
}

// RejectBookingRequest is the HTTP request body for declining a booking.
type RejectBookingRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
	Reason   string `json:"reason,omitempty"`
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.machine.Reject(c.Request.Context(), negotiation.RejectRequest{
		BookingID: c.Param("id"),
		DriverID:  req.DriverID,
		Reason:    req.Reason,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitOfferRequest is the HTTP request body for a driver fare offer.
type SubmitOfferRequest struct {
	DriverID string  `json:"driver_id" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
}

// SubmitOffer handles POST /v1/bookings/:id/offers
func (h *BookingHandler) SubmitOffer(c *gin.Context) {
	var req SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.machine.SubmitOffer(c.Request.Context(), negotiation.OfferRequest{
		BookingID: c.Param("id"),
		DriverID:  req.DriverID,
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"offers": b.PendingOffers()})
}

// ProposeFareRequest is the HTTP request body for opening a bargaining
// round.
type ProposeFareRequest struct {
	Actor   string  `json:"actor" binding:"required"`
	ActorID string  `json:"actor_id" binding:"required"`
	Amount  float64 `json:"amount" binding:"required"`
}

// ProposeFare handles POST /v1/bookings/:id/negotiation
func (h *BookingHandler) ProposeFare(c *gin.Context) {
	var req ProposeFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.machine.Propose(c.Request.Context(), negotiation.ProposeRequest{
		BookingID: c.Param("id"),
		Actor:     domain.ActorRole(req.Actor),
		ActorID:   req.ActorID,
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, gin.H{"ledger": b.NegotiationLedger})
}

// RespondFareRequest is the HTTP request body for answering an open
// proposal.
type RespondFareRequest struct {
	Actor   string  `json:"actor" binding:"required"`
	ActorID string  `json:"actor_id" binding:"required"`
	Action  string  `json:"action" binding:"required"` // accept, reject, counter
	Amount  float64 `json:"amount,omitempty"`
}

// RespondFare handles POST /v1/bookings/:id/negotiation/respond
func (h *BookingHandler) RespondFare(c *gin.Context) {
	var req RespondFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.machine.Respond(c.Request.Context(), negotiation.RespondRequest{
		BookingID: c.Param("id"),
		Actor:     domain.ActorRole(req.Actor),
		ActorID:   req.ActorID,
		Action:    negotiation.ResponseAction(req.Action),
		Amount:    req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, bookingResponse(b))
}

// RaiseFareRequest is the HTTP request body for a user fare escalation.
type RaiseFareRequest struct {
	UserID  string  `json:"user_id" binding:"required"`
	NewFare float64 `json:"new_fare" binding:"required"`
}

// RaiseFareResponse reports the raised booking and the new window size.
type RaiseFareResponse struct {
	Booking    BookingResponse `json:"booking"`
	Candidates int             `json:"candidates_notified"`
}

// RaiseFare handles POST /v1/bookings/:id/raise-fare
func (h *BookingHandler) RaiseFare(c *gin.Context) {
	var req RaiseFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, count, err := h.machine.Raise(c.Request.Context(), negotiation.RaiseRequest{
		BookingID: c.Param("id"),
		UserID:    req.UserID,
		NewFare:   req.NewFare,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, RaiseFareResponse{
		Booking:    bookingResponse(b),
		Candidates: count,
	})
}

// CancelBookingRequest is the HTTP request body for cancelling a booking.
type CancelBookingRequest struct {
	Actor     string `json:"actor" binding:"required"`
	ActorID   string `json:"actor_id" binding:"required"`
	Reason    string `json:"reason,omitempty"`
	Milestone string `json:"milestone,omitempty"`
}

// CancelBookingResponse reports the cancelled booking and any charge.
type CancelBookingResponse struct {
	Booking            BookingResponse `json:"booking"`
	CancellationCharge float64         `json:"cancellation_charge"`
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	milestone := domain.TripMilestone(req.Milestone)
	if milestone == "" {
		milestone = domain.MilestoneBeforeArrival
	}

	b, charge, err := h.machine.Cancel(c.Request.Context(), negotiation.CancelRequest{
		BookingID: c.Param("id"),
		Actor:     domain.ActorRole(req.Actor),
		ActorID:   req.ActorID,
		Reason:    req.Reason,
		Milestone: milestone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, CancelBookingResponse{
		Booking:            bookingResponse(b),
		CancellationCharge: charge,
	})
}

// StartBookingRequest is the HTTP request body for starting a ride.
type StartBookingRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// StartBooking handles POST /v1/bookings/:id/start
func (h *BookingHandler) StartBooking(c *gin.Context) {
	var req StartBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.machine.Start(c.Request.Context(), negotiation.StartRequest{
		BookingID: c.Param("id"),
		DriverID:  req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, bookingResponse(b))
}

// CompleteBookingRequest is the HTTP request body for completing a ride.
type CompleteBookingRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// CompleteBookingResponse reports the completed booking and its receipt.
type CompleteBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	var req CompleteBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, receipt, err := h.machine.Complete(c.Request.Context(), negotiation.CompleteRequest{
		BookingID: c.Param("id"),
		DriverID:  req.DriverID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, CompleteBookingResponse{
		Booking: bookingResponse(b),
		Receipt: receipt,
	})
}

// GetReceipt handles GET /v1/bookings/:id/receipt
func (h *BookingHandler) GetReceipt(c *gin.Context) {
	r, err := h.receiptService.ForBooking(c.Request.Context(), c.Param("id"), c.Query("actor_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, r)
}

// ConfirmSurveyRequest is the HTTP request body for confirming the
// post-service survey.
type ConfirmSurveyRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ConfirmSurvey handles POST /v1/bookings/:id/survey/confirm
func (h *BookingHandler) ConfirmSurvey(c *gin.Context) {
	var req ConfirmSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.bookingService.ConfirmSurvey(c.Request.Context(), req.UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
