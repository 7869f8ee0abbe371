package offer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status classifies the outcome of parsing one seller-offer fragment.
type Status string

// Parse outcomes. A skipped fragment is dropped from the batch; it is
// never fatal for the page or the crawl.
const (
	StatusParsed  Status = "parsed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of parsing one seller-offer fragment. Replaces
// catch-and-log control flow: callers report per-offer outcomes instead of
// inferring them from logs.
type Result struct {
	Offer  RawOffer
	Status Status
	// Reason explains a skip, e.g. "missing price".
	Reason string
	// TierUnmapped marks offers whose source reputation code was not
	// recognized and defaulted to unrated.
	TierUnmapped bool
}

// Component ids inside a seller item.
const (
	componentPrice     = "price"
	componentPayment   = "payment_summary"
	componentCondition = "condition_summary"
	componentShipping  = "shipping_summary"
	componentSeller    = "seller"
)

// listingURLTemplate derives the public listing URL from the numeric part
// of the offer id.
const listingURLTemplate = "https://articulo.mercadolibre.com.ar/MLA-%s"

var (
	// Two alternative phrasings carry the no-interest installment count;
	// the first match wins. Both the source-site Spanish and the English
	// variants are recognized.
	installmentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:mismo precio en|same price in)\s*(\d+)\s*(?:cuotas|installments)`),
		regexp.MustCompile(`(?i)(\d+)\s*(?:cuotas\s*sin\s*inter[eé]s|installments,?\s*no\s*interest)`),
	}

	freeShippingTokens = []string{"gratis", "free"}
	fastShippingTokens = []string{"mañana", "next-day", "tomorrow"}
	invoiceATokens     = []string{"factura a", "invoice a"}
)

// Parse converts one seller-offer fragment into a canonical offer record,
// using the page-level fulfillment lookup for the platform-logistics flag.
// Pure function: no side effects, deterministic over its inputs. The
// returned offer lacks extraction date, catalog id, and product metadata;
// the ingestion enricher attaches those.
func Parse(item SellerItem, fulfillment map[string]bool) Result {
	var (
		price        *float64
		installments string
		shipping     string
	)

	out := RawOffer{
		OfferID:                     item.ID,
		ReputationTier:              TierUnrated,
		ShippingFulfilledByPlatform: fulfillment[item.ID],
		ListingURL:                  listingURL(item.ID),
	}
	tierCode := ""

	for _, comp := range item.Components {
		switch comp.ID {
		case componentPrice:
			if comp.Price != nil && comp.Price.Value != nil {
				v := *comp.Price.Value
				price = &v
			}
		case componentPayment:
			installments = comp.Title.Text
		case componentCondition:
			out.Condition = comp.Title.Text
		case componentShipping:
			shipping = shippingText(comp.Title)
		case componentSeller:
			out.SellerName = comp.Seller.Name
			tierCode = comp.Seller.ReputationLevel
			out.InvoiceTypeA = hasInvoiceA(comp.SellerInfo.ExtraInfo)
		}
	}

	if price == nil || *price <= 0 {
		return Result{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("offer %s: missing or non-positive price", item.ID),
		}
	}
	out.Price = *price

	result := Result{Status: StatusParsed}
	out.ReputationTier, result.TierUnmapped = mapTier(tierCode)
	out.InstallmentsNoInterest = InstallmentsNoInterest(installments)
	out.ShippingFree = containsAnyFold(shipping, freeShippingTokens)
	out.ShippingFast = containsAnyFold(shipping, fastShippingTokens)
	result.Offer = out
	return result
}

// InstallmentsNoInterest extracts the interest-free installment count from
// the payment summary text. Absence of a match yields 0.
func InstallmentsNoInterest(text string) int {
	for _, pattern := range installmentPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// shippingText assembles the rendered shipping description: the promise
// fragment replaces its placeholder in the title template.
func shippingText(title titleBlock) string {
	rest := strings.ReplaceAll(title.Text, "{promise}", "")
	return strings.TrimSpace(title.Values.Promise.Text + rest)
}

func hasInvoiceA(infos []extraInfo) bool {
	for _, info := range infos {
		if containsAnyFold(info.Subtitle, invoiceATokens) {
			return true
		}
	}
	return false
}

// mapTier maps a source reputation code to the canonical tier. Unknown
// non-empty codes default to unrated and are reported as unmapped.
func mapTier(code string) (ReputationTier, bool) {
	if tier, ok := sourceTiers[code]; ok {
		return tier, false
	}
	return TierUnrated, code != ""
}

func listingURL(offerID string) string {
	if offerID == "" {
		return ""
	}
	return fmt.Sprintf(listingURLTemplate, strings.TrimPrefix(offerID, "MLA"))
}

func containsAnyFold(s string, tokens []string) bool {
	lower := strings.ToLower(s)
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
