package domain

// FareEstimate is a priced fare breakdown. It is immutable once computed.
// All monetary amounts are rounded to 2 decimal places and VAT is extracted
// from the VAT-inclusive total, not added on top.
type FareEstimate struct {
	BaseFare        float64
	DistanceFare    float64
	TimeFare        float64
	BookingFee      float64
	SurgeMultiplier float64 // always >= 1.0
	SurgeAmount     float64
	Subtotal        float64
	VATAmount       float64
	Total           float64
	Currency        string
	DistanceMeters  float64
	DurationSeconds float64
}
