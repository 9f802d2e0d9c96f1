package service

import "errors"

var (
	ErrInvalidServiceType = errors.New("unknown service type")
	ErrInvalidVehicleType = errors.New("vehicle type not offered for this service")
	ErrInvalidCategory    = errors.New("service category does not match vehicle type")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrInvalidRouteType   = errors.New("unknown route type")
	ErrPinnedDriverID     = errors.New("pinned preference requires a driver id")
	ErrNotBookingOwner    = errors.New("booking does not belong to this user")
	ErrBookingNotComplete = errors.New("booking is not completed")
)
