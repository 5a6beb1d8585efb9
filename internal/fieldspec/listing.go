package fieldspec

import "github.com/propgate/propgate/internal/entitlement"

// Field identifiers of a property listing record.
const (
	Title             = "title"
	Description       = "description"
	PublicDescription = "public_description"
	Neighborhood      = "neighborhood"
	Price             = "price"
	Photos            = "photos"
	PropertyType      = "property_type"
	ExactAddress      = "exact_address"
	Phone             = "phone"
	RealSurface       = "real_surface"
	Charges           = "charges"
	PDFPlanURL        = "pdf_plan_url"
)

// Listing is the gating table for a property listing.
var Listing = MustTable(
	FieldSpec{FieldID: Title, Required: entitlement.Free},
	FieldSpec{FieldID: PublicDescription, Required: entitlement.Free},
	FieldSpec{FieldID: Description, Required: entitlement.Premium},
	FieldSpec{FieldID: Neighborhood, Required: entitlement.Free},
	FieldSpec{FieldID: Price, Required: entitlement.Free},
	FieldSpec{FieldID: Photos, Required: entitlement.Free},
	FieldSpec{FieldID: PropertyType, Required: entitlement.Free},
	FieldSpec{FieldID: ExactAddress, Required: entitlement.Premium},
	FieldSpec{FieldID: Phone, Required: entitlement.Premium},
	FieldSpec{FieldID: RealSurface, Required: entitlement.Premium},
	FieldSpec{FieldID: Charges, Required: entitlement.Premium},
	FieldSpec{FieldID: PDFPlanURL, Required: entitlement.Premium},
)

// summaryFields are the columns shown on catalogue cards.
var summaryFields = []string{Title, PublicDescription, Price, Neighborhood, Photos, PropertyType}

// ListingSummary is the gating table used for catalogue cards.
var ListingSummary = mustSelect(Listing, summaryFields...)

// Summary derives the catalogue table from a (possibly reconfigured) listing
// table.
func Summary(t Table) (Table, error) {
	return t.Select(summaryFields...)
}

// AssetFields are listing fields whose stored values are object-storage keys.
var AssetFields = []string{Photos, PDFPlanURL}

func mustSelect(t Table, ids ...string) Table {
	s, err := t.Select(ids...)
	if err != nil {
		panic(err)
	}
	return s
}
