package domain

// VehicleType represents the requested service class of a ride.
type VehicleType string

const (
	VehicleTypeStandard   VehicleType = "STANDARD"
	VehicleTypeComfort    VehicleType = "COMFORT"
	VehicleTypeXL         VehicleType = "XL"
	VehicleTypeAccessible VehicleType = "ACCESSIBLE"
	VehicleTypeElectric   VehicleType = "ELECTRIC"
)

// vehicleMultipliers scales the metered fare components per service class.
// The booking fee is never scaled.
var vehicleMultipliers = map[VehicleType]float64{
	VehicleTypeStandard:   1.0,
	VehicleTypeComfort:    1.3,
	VehicleTypeXL:         1.5,
	VehicleTypeAccessible: 1.0,
	VehicleTypeElectric:   1.1,
}

// Valid reports whether the vehicle type is one of the known service classes.
func (t VehicleType) Valid() bool {
	_, ok := vehicleMultipliers[t]
	return ok
}

// FareMultiplier returns the fare multiplier for the vehicle type. Unknown
// types fall back to 1.0.
func (t VehicleType) FareMultiplier() float64 {
	if m, ok := vehicleMultipliers[t]; ok {
		return m
	}
	return 1.0
}

// Matches reports whether a vehicle of type actual satisfies a request for
// this type. STANDARD acts as a wildcard: a rider requesting STANDARD accepts
// any vehicle. An empty requested type behaves the same way.
func (t VehicleType) Matches(actual VehicleType) bool {
	if t == "" || t == VehicleTypeStandard {
		return true
	}
	return t == actual
}

// Vehicle describes a vehicle registered to a driver.
type Vehicle struct {
	ID       string
	DriverID string
	TenantID string
	Type     VehicleType
	Make     string
	Model    string
	Color    string
	Plate    string
	Active   bool
}
