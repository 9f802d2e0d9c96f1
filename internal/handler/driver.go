package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/domain"
	"hail/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Phone       string                 `json:"phone" binding:"required"`
	Gender      string                 `json:"gender" binding:"required"`
	Preferences domain.RidePreferences `json:"preferences,omitempty"`
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	d, err := h.driverService.RegisterDriver(c.Request.Context(), service.RegisterDriverRequest{
		Name:        req.Name,
		Phone:       req.Phone,
		Gender:      domain.Gender(req.Gender),
		Preferences: req.Preferences,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, d)
}

// RegisterVehicleRequest is the HTTP request body for registering a
// vehicle.
type RegisterVehicleRequest struct {
	ServiceType string `json:"service_type" binding:"required"`
	VehicleType string `json:"vehicle_type" binding:"required"`
}

// RegisterVehicle handles POST /v1/drivers/:id/vehicles
func (h *DriverHandler) RegisterVehicle(c *gin.Context) {
	var req RegisterVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	v, err := h.driverService.RegisterVehicle(c.Request.Context(), c.Param("id"),
		domain.ServiceType(req.ServiceType), domain.VehicleType(req.VehicleType))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, v)
}

// LocationRequest is the HTTP request body for a location heartbeat.
type LocationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GoOnline handles POST /v1/drivers/:id/online
func (h *DriverHandler) GoOnline(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.GoOnline(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	if err := h.driverService.GoOffline(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
