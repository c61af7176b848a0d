package domain

// PropertyRecord is the canonical shape a listing item is normalized into.
// Upstream sources disagree on which fields they populate, so everything
// except the address of record is optional. A record without coordinates
// never enters the pipeline.
type PropertyRecord struct {
	Address    *string
	Coords     *Coordinates
	ExternalID *string
	Price      *float64
	Beds       *float64
	Baths      *float64
	LivingArea *float64 // square feet
	LotSize    *float64 // square feet
}

// SearchFilters map onto provider-specific query parameters. Nil/zero fields
// are omitted from the outbound request.
type SearchFilters struct {
	MinPrice        *int
	MaxPrice        *int
	BedsMin         *int
	BathsMin        *int
	HomeType        string
	StatusType      string
	NewConstruction *bool
	Auction         *bool
	Foreclosure     *bool
	LotSizeMin      *int
	Keywords        string

	// Coordinate or polygon search overrides the free-form location text.
	Coordinates string
	Polygon     string
}
