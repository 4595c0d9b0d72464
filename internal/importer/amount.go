package importer

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errEmptyAmount = errors.New("empty amount")

// parseAmount parses a money string into minor units. Both "1.234,56" and
// "1,234.56" are understood: when both separators appear the later one is the
// decimal point, and a lone comma followed by one or two digits is a decimal
// comma. Currency symbols, spaces and accounting parentheses are tolerated.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' || r == '+' {
			return r
		}

		return -1
	}, s)

	if s == "" {
		return 0, errEmptyAmount
	}

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && strings.Count(s, ",") == 1 && len(s)-comma-1 <= 2:
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}

	if negative {
		d = d.Neg()
	}

	return d.Shift(2).Round(0).IntPart(), nil
}
