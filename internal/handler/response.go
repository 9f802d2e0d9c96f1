package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/negotiation"
	"hail/internal/pricing"
	"hail/internal/repository"
	"hail/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`

	// Fare band bounds, present only on out-of-band amounts so clients can
	// show the allowed range.
	MinFare float64 `json:"min_fare,omitempty"`
	MaxFare float64 `json:"max_fare,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status
// code, and records the error on the context for the middleware chain.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	if band, ok := negotiation.AsBandError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   band.Error(),
			MinFare: band.Min,
			MaxFare: band.Max,
		})
		return
	}
	c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidServiceType),
		errors.Is(err, service.ErrInvalidVehicleType),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidCoordinates),
		errors.Is(err, service.ErrInvalidRouteType),
		errors.Is(err, service.ErrPinnedDriverID):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, negotiation.ErrBookingNotPending),
		errors.Is(err, negotiation.ErrBookingNotAccepted),
		errors.Is(err, negotiation.ErrBookingNotStarted),
		errors.Is(err, negotiation.ErrNotCancellable),
		errors.Is(err, negotiation.ErrPendingOfferExists),
		errors.Is(err, negotiation.ErrOpenProposalExists),
		errors.Is(err, negotiation.ErrNoOpenProposal),
		errors.Is(err, negotiation.ErrProposalExpired),
		errors.Is(err, negotiation.ErrSelfResponse),
		errors.Is(err, negotiation.ErrResendExhausted),
		errors.Is(err, negotiation.ErrMatchingInProgress),
		errors.Is(err, service.ErrBookingNotComplete):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, negotiation.ErrNotParty),
		errors.Is(err, negotiation.ErrNotAssignedDriver),
		errors.Is(err, negotiation.ErrDriverPreviouslyRejected),
		errors.Is(err, service.ErrNotBookingOwner):
		return http.StatusForbidden

	// Service unavailable
	case errors.Is(err, negotiation.ErrNoCandidates),
		errors.Is(err, pricing.ErrConfigurationMissing):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
