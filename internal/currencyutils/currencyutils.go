// Package currencyutils parses monetary amounts as they appear in bank exports
// and user input.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = regexp.MustCompile(`(?i)CHF|EUR|USD|GBP|[€$£¥₣₤₧₹₺₽₩฿₫₲₴₸₼₪\s]`)

// ParseAmount parses a string representation of an amount into a decimal value.
// It handles formats like "1,234.56", "1.234,56", "1'234.56", "1234,56" and
// currency marks. The empty string is zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(StandardizeAmount(amountStr))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount rewrites an amount into the plain form accepted by
// decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	amountStr = currencyMarks.ReplaceAllString(amountStr, "")

	// Remove apostrophes used as thousand separators (1'234.56)
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	switch {
	case strings.Contains(amountStr, ",") && strings.Contains(amountStr, "."):
		if strings.LastIndex(amountStr, ".") < strings.LastIndex(amountStr, ",") {
			// 1.234,56
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			// 1,234.56
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	case strings.Contains(amountStr, ","):
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			// 1234,56
			amountStr = strings.Replace(amountStr, ",", ".", 1)
		} else {
			// 1,234
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}

	return amountStr
}
