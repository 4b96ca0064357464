package domain

// Product availability values in the external catalog projection.
const (
	AvailabilityInStock    = "IN_STOCK"
	AvailabilityOutOfStock = "OUT_OF_STOCK"
)

// Product is the engine's catalog entry for one purchasable item. Price is in
// minor units.
type Product struct {
	ID          string
	Name        string
	Description string
	SKU         string
	URL         string
	Price       int64
	Currency    string
	MinorUnit   int
	Stock       int
	InStock     bool
	Images      []string
}

// Availability returns the external availability enum for the product.
func (p Product) Availability() string {
	if p.InStock {
		return AvailabilityInStock
	}
	return AvailabilityOutOfStock
}
