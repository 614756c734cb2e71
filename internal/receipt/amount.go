package receipt

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseDecimal reads plain ("1234.56"), US ("1,234.56") and European
// ("1.234,56", "12,50") amounts. Currency symbols and spaces are ignored.
func ParseDecimal(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			return r
		}

		return -1
	}, s)

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		// A single comma followed by one or two digits is a decimal comma;
		// otherwise commas group thousands.
		if strings.Count(clean, ",") == 1 && len(clean)-lastComma-1 <= 2 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case strings.Count(clean, ".") > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	return decimal.NewFromString(clean)
}

// ParseAmount accepts a JSON number, a numeric string in any format
// ParseDecimal reads, or null. Blank strings are treated as null.
func ParseAmount(raw json.RawMessage) (decimal.NullDecimal, error) {
	if isNullJSON(raw) {
		return decimal.NullDecimal{}, nil
	}

	raw = bytes.TrimSpace(raw)

	if raw[0] != '"' {
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return decimal.NullDecimal{}, err
		}

		return decimal.NewNullDecimal(d), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.NullDecimal{}, err
	}

	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}

	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	return decimal.NewNullDecimal(d), nil
}
