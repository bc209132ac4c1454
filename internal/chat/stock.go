package chat

import (
	"regexp"
	"strings"
	"unicode"
)

const maxStockCodeLength = 20

var stockCodePattern = regexp.MustCompile(`^[A-Z0-9.-]{1,20}$`)

// NormalizeStockCode strips all whitespace, uppercases and validates a
// ticker such as " aapl " or "005930.ks".
func NormalizeStockCode(raw string) (string, error) {
	normalized := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
	switch {
	case normalized == "":
		return "", invalid("stock_code", "stock_code is empty")
	case len([]rune(normalized)) > maxStockCodeLength:
		return "", invalid("stock_code", "stock_code must be 20 chars or fewer")
	case !stockCodePattern.MatchString(normalized):
		return "", invalid("stock_code", "stock_code contains invalid characters")
	}
	return normalized, nil
}
