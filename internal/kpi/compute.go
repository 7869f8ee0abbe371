package kpi

import (
	"sort"
	"time"

	"github.com/nmoreyra/catalogpulse/internal/offer"
)

// compute derives one KPI row from one catalog's offers for one day.
// Ranking is a total order: price ascending with ties broken by offer_id
// ascending, so the output is reproducible for any input order.
func compute(catalogID string, offers []offer.RawOffer, ourSellerName string, day time.Time) DailyProductKPI {
	ranked := make([]offer.RawOffer, len(offers))
	copy(ranked, offers)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Price != ranked[j].Price {
			return ranked[i].Price < ranked[j].Price
		}
		return ranked[i].OfferID < ranked[j].OfferID
	})

	row := DailyProductKPI{
		Date:            day,
		CatalogID:       catalogID,
		CompetitorCount: len(ranked),
	}

	var (
		sum       float64
		repSum    float64
		fastCount int
		fullCount int
		freeCount int
		invCount  int
	)
	for i, o := range ranked {
		if i == 0 {
			row.MinPrice = o.Price
			row.MarketLeaderOfferID = o.OfferID
			row.MarketLeaderSellerName = o.SellerName
		}
		row.MaxPrice = maxFloat(row.MaxPrice, o.Price)
		sum += o.Price
		repSum += o.ReputationTier.Score()
		if o.ShippingFast {
			fastCount++
		}
		if o.ShippingFulfilledByPlatform {
			fullCount++
		}
		if o.ShippingFree {
			freeCount++
		}
		if o.InvoiceTypeA {
			invCount++
		}
		if row.ProductName == "" && o.ProductName != "" {
			row.ProductName = o.ProductName
			row.CategoryPrimary = o.CategoryPrimary
			row.CategorySecondary = o.CategorySecondary
		}
		if o.SellerName == ourSellerName {
			// A seller can hold several offers in one catalog; keep the
			// worst-ranked one, matching the historical snapshot query.
			price := o.Price
			rank := i + 1
			row.OurPrice = &price
			row.OurRank = &rank
		}
	}

	n := float64(len(ranked))
	row.AvgPrice = sum / n
	row.AvgReputationScore = repSum / n
	row.PctFastShipping = 100 * float64(fastCount) / n
	row.PctPlatformFulfilled = 100 * float64(fullCount) / n
	row.PctFreeShipping = 100 * float64(freeCount) / n
	row.PctInvoiceA = 100 * float64(invCount) / n

	if row.OurPrice != nil {
		gap := *row.OurPrice - row.MinPrice
		row.PriceGapVsLeader = &gap
	}
	return row
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
