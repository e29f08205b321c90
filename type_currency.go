package holdings

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
)

var currencyFormat = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseCurrency normalizes a currency code and checks it is a known ISO 4217 code.
func ParseCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := ValidateCurrency(code); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateCurrency returns a ValidationError if code is not a known currency code.
func ValidateCurrency(code string) error {
	if !currencyFormat.MatchString(code) {
		return &ValidationError{Field: "currency", Reason: fmt.Sprintf("%q is not a 3-letter uppercase code", code)}
	}
	if money.GetCurrency(code) == nil {
		return &ValidationError{Field: "currency", Reason: fmt.Sprintf("%q is not a known currency", code)}
	}
	return nil
}

// normalizeSymbol is the canonical form of a position symbol.
func normalizeSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
