package domain

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusOnline  DriverStatus = "online"
	DriverStatusOffline DriverStatus = "offline"
	DriverStatusOnTrip  DriverStatus = "on_trip"
)

// KYCStatus is the driver's verification state. Only fully approved drivers
// are eligible for matching.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

// Gender of a driver, used by Pink Captain matching.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// RidePreferences are a driver's opted-in ride modes. For Pink Captain
// matching these must cover every sub-option the requester asked for.
type RidePreferences struct {
	PinkCaptain          bool `json:"pink_captain"`
	FemalePassengersOnly bool `json:"female_passengers_only"`
	FamilyRides          bool `json:"family_rides"`
	NoMaleCompanion      bool `json:"no_male_companion"`
}

// Covers reports whether the driver's opt-ins are a superset of the
// requested Pink Captain sub-options.
func (p RidePreferences) Covers(req PinkCaptainOptions) bool {
	if req.FemalePassengersOnly && !p.FemalePassengersOnly {
		return false
	}
	if req.FamilyRides && !p.FamilyRides {
		return false
	}
	if req.NoMaleCompanion && !p.NoMaleCompanion {
		return false
	}
	return true
}

// Driver represents a driver in the directory.
type Driver struct {
	ID          string
	Name        string
	Phone       string
	Gender      Gender
	Status      DriverStatus
	KYC         KYCStatus
	Active      bool
	Preferences RidePreferences
}

// Vehicle is a registry entry joining a driver to the service taxonomy.
// A driver without an active vehicle matching the requested service is not
// eligible, whatever their directory status says.
type Vehicle struct {
	ID          string
	DriverID    string
	ServiceType ServiceType
	VehicleType VehicleType
	Active      bool
}

// User represents a requester in the system. Account management is owned by
// the enclosing platform; only the reference shape is needed here.
type User struct {
	ID    string
	Name  string
	Phone string
}
