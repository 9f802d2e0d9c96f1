package domain

// ServiceType identifies one of the marketplace's service families.
type ServiceType string

const (
	ServiceCarCab         ServiceType = "car_cab"
	ServiceBike           ServiceType = "bike"
	ServiceCarRecovery    ServiceType = "car_recovery"
	ServiceShiftingMovers ServiceType = "shifting_movers"
)

// VehicleType is the most specific level of the service taxonomy.
// For car recovery these are sub-services (e.g. flatbed towing); for the
// other families they are plain vehicle classes.
type VehicleType string

const (
	// Car cab.
	VehicleEconomy  VehicleType = "economy"
	VehiclePremium  VehicleType = "premium"
	VehicleXL       VehicleType = "xl"
	VehicleFamily   VehicleType = "family"
	VehicleLuxury   VehicleType = "luxury"

	// Bike.
	VehicleBikeStandard VehicleType = "bike_standard"
	VehicleBikeElectric VehicleType = "bike_electric"

	// Car recovery sub-services.
	VehicleFlatbedTowing    VehicleType = "flatbed_towing"
	VehicleWheelLiftTowing  VehicleType = "wheel_lift_towing"
	VehicleOnRoadWinching   VehicleType = "on_road_winching"
	VehicleOffRoadWinching  VehicleType = "off_road_winching"
	VehicleBatteryJumpStart VehicleType = "battery_jump_start"
	VehicleFuelDelivery     VehicleType = "fuel_delivery"
	VehicleLuxuryRecovery   VehicleType = "luxury_recovery"
	VehicleHeavyRecovery    VehicleType = "heavy_recovery"

	// Shifting & movers.
	VehicleSmallMover  VehicleType = "small_mover"
	VehicleMediumMover VehicleType = "medium_mover"
	VehicleHeavyMover  VehicleType = "heavy_mover"
)

// ServiceCategory is the middle taxonomy level, used by car recovery.
type ServiceCategory string

const (
	CategoryTowing              ServiceCategory = "towing"
	CategoryWinching            ServiceCategory = "winching"
	CategoryRoadsideAssistance  ServiceCategory = "roadside_assistance"
	CategorySpecializedRecovery ServiceCategory = "specialized_recovery"
)

// RouteType distinguishes one-way trips from round trips.
type RouteType string

const (
	RouteOneWay    RouteType = "one_way"
	RouteRoundTrip RouteType = "round_trip"
)

// serviceVehicles is the allow-list of vehicle types per service family.
var serviceVehicles = map[ServiceType][]VehicleType{
	ServiceCarCab: {VehicleEconomy, VehiclePremium, VehicleXL, VehicleFamily, VehicleLuxury},
	ServiceBike:   {VehicleBikeStandard, VehicleBikeElectric},
	ServiceCarRecovery: {
		VehicleFlatbedTowing, VehicleWheelLiftTowing,
		VehicleOnRoadWinching, VehicleOffRoadWinching,
		VehicleBatteryJumpStart, VehicleFuelDelivery,
		VehicleLuxuryRecovery, VehicleHeavyRecovery,
	},
	ServiceShiftingMovers: {VehicleSmallMover, VehicleMediumMover, VehicleHeavyMover},
}

// recoveryCategories maps each car-recovery sub-service to its category.
var recoveryCategories = map[VehicleType]ServiceCategory{
	VehicleFlatbedTowing:    CategoryTowing,
	VehicleWheelLiftTowing:  CategoryTowing,
	VehicleOnRoadWinching:   CategoryWinching,
	VehicleOffRoadWinching:  CategoryWinching,
	VehicleBatteryJumpStart: CategoryRoadsideAssistance,
	VehicleFuelDelivery:     CategoryRoadsideAssistance,
	VehicleLuxuryRecovery:   CategorySpecializedRecovery,
	VehicleHeavyRecovery:    CategorySpecializedRecovery,
}

// ValidVehicleForService reports whether the vehicle type is on the
// allow-list for the service family.
func ValidVehicleForService(st ServiceType, vt VehicleType) bool {
	for _, v := range serviceVehicles[st] {
		if v == vt {
			return true
		}
	}
	return false
}

// CategoryForVehicle resolves the service category a car-recovery
// sub-service belongs to. The second return is false for vehicle types
// outside the car-recovery family.
func CategoryForVehicle(vt VehicleType) (ServiceCategory, bool) {
	c, ok := recoveryCategories[vt]
	return c, ok
}

// ValidCategoryForVehicle reports whether the given category is the one the
// vehicle type maps to under the car-recovery category map.
func ValidCategoryForVehicle(vt VehicleType, sc ServiceCategory) bool {
	c, ok := recoveryCategories[vt]
	return ok && c == sc
}

// ValidServiceType reports whether st is a known service family.
func ValidServiceType(st ServiceType) bool {
	_, ok := serviceVehicles[st]
	return ok
}
