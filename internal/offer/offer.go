// Package offer defines the canonical seller-offer model and the parser
// that produces it from the marketplace's embedded page state.
package offer

import "time"

// ReputationTier is the canonical seller reputation bucket.
type ReputationTier string

// Canonical reputation tiers, ordered best to worst.
const (
	TierTop      ReputationTier = "top"
	TierGold     ReputationTier = "gold"
	TierStandard ReputationTier = "standard"
	TierUnrated  ReputationTier = "unrated"
)

// Score maps a tier to the numeric value used for reputation averages.
func (t ReputationTier) Score() float64 {
	switch t {
	case TierTop:
		return 5
	case TierGold:
		return 4
	case TierStandard:
		return 3
	default:
		return 2
	}
}

// sourceTiers maps marketplace reputation level codes to canonical tiers.
// Unknown codes fall through to TierUnrated; the parser records the
// fallback so it is observable rather than silent.
var sourceTiers = map[string]ReputationTier{
	"5_green":       TierTop,
	"4_light_green": TierGold,
	"3_yellow":      TierStandard,
}

// RawOffer is one seller offer for a tracked catalog on a given day.
// Exactly one row exists per (ExtractionDate, OfferID); rows are written
// once and never updated.
type RawOffer struct {
	ExtractionDate    time.Time
	CatalogID         string
	OfferID           string
	ProductName       string
	CategoryPrimary   string
	CategorySecondary string
	Price             float64
	SellerName        string
	ReputationTier    ReputationTier
	Condition         string
	ShippingFree      bool
	// ShippingFulfilledByPlatform is sourced from the structured
	// fulfillment lookup, never from shipping text.
	ShippingFulfilledByPlatform bool
	ShippingFast                bool
	InvoiceTypeA                bool
	InstallmentsNoInterest      int
	ListingURL                  string
}
