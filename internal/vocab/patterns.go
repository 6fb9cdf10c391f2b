package vocab

import (
	"regexp"
	"strings"
	"unicode"
)

// Regex families for value-shape detection, kept as data so new formats
// are additive changes.
var (
	// idPatterns match identifier-shaped values like PEP001, INV-20231,
	// ID_4521 or a UUID.
	idPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Za-z]{2,4}[-_]?\d{3,6}$`),
		regexp.MustCompile(`^(?i:id|no|ref)[-_ ]?\d{1,10}$`),
		regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	}

	// skuShape matches shorter alphanumeric codes; a SKU additionally
	// needs at least one letter and one digit (RE2 has no lookahead).
	skuShape = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{2,11}$`)

	// currencyPatterns cover symbol-before-amount, symbol-after-amount
	// and ISO-code-after-amount families.
	currencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^-?[\$€£¥₹]\s?\d{1,3}(,\d{3})*(\.\d+)?$`),
		regexp.MustCompile(`^-?[\$€£¥₹]\s?\d+(\.\d+)?$`),
		regexp.MustCompile(`^-?\d{1,3}(,\d{3})*(\.\d+)?\s?[\$€£¥₹]$`),
		regexp.MustCompile(`^-?\d+(\.\d+)?\s?(?i:usd|eur|gbp|inr|jpy|cad|aud)$`),
	}

	// currencyStrip removes symbols, codes and thousands separators before
	// a numeric parse attempt.
	currencyStrip = regexp.MustCompile(`[\$€£¥₹,\s]|(?i:usd|eur|gbp|inr|jpy|cad|aud)$`)
)

// MatchesID reports whether a value has an identifier shape.
func MatchesID(value string) bool {
	value = strings.TrimSpace(value)
	for _, re := range idPatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// MatchesSKU reports whether a value looks like a short alphanumeric
// product code: SKU shape plus at least one letter and one digit.
func MatchesSKU(value string) bool {
	value = strings.TrimSpace(value)
	if !skuShape.MatchString(value) {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// MatchesCurrency reports whether a value is currency-formatted.
func MatchesCurrency(value string) bool {
	value = strings.TrimSpace(value)
	for _, re := range currencyPatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// StripCurrency removes currency symbols, ISO codes and thousands
// separators so the remainder can be parsed as a plain number.
func StripCurrency(value string) string {
	return currencyStrip.ReplaceAllString(strings.TrimSpace(value), "")
}
