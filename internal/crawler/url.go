package crawler

import "regexp"

var (
	// catalogURLPattern matches the canonical product-page shape; anything
	// after the /p/<id> segment is a tracking suffix and gets stripped.
	catalogURLPattern = regexp.MustCompile(`(https://www\.mercadolibre\.com\.ar/[^?\s]*?/p/MLA\d+)`)

	catalogIDPattern = regexp.MustCompile(`/p/(MLA\d+)`)
)

// NormalizeCatalogURL strips tracking path suffixes from a catalog URL.
// Returns the input unchanged, with ok=false, when it does not look like a
// catalog product page.
func NormalizeCatalogURL(raw string) (string, bool) {
	match := catalogURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return raw, false
	}
	return match[1], true
}

// CatalogID extracts the tracked product identifier from a catalog URL.
func CatalogID(raw string) (string, bool) {
	match := catalogIDPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	return match[1], true
}
