package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
)

var currencySymbols = map[string]string{
	"A$":  "AUD",
	"AU$": "AUD",
	"US$": "USD",
	"NZ$": "NZD",
	"£":   "GBP",
	"€":   "EUR",
}

// ParsePrice reads a price from a JSON value: a number, or a string such as
// "$1,299.95", "AU$ 12.50" or "12,50 €". It returns nil when no positive
// amount is found, together with any currency the text implies.
func ParsePrice(v any) (*float64, string) {
	switch p := v.(type) {
	case float64:
		if p > 0 {
			return &p, ""
		}
	case json.Number:
		if f, err := p.Float64(); err == nil && f > 0 {
			return &f, ""
		}
	case string:
		return parsePriceText(p)
	}
	return nil, ""
}

func parsePriceText(text string) (*float64, string) {
	text = strings.TrimSpace(text)
	currency := ""
	upper := strings.ToUpper(text)
	for symbol, code := range currencySymbols {
		if strings.Contains(upper, symbol) {
			currency = code
			break
		}
	}
	for _, code := range []string{"AUD", "USD", "NZD", "GBP", "EUR"} {
		if currency == "" && strings.Contains(upper, code) {
			currency = code
		}
	}

	var digits strings.Builder
	started := false
scan:
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			started = true
			digits.WriteRune(r)
		case started && (r == '.' || r == ','):
			digits.WriteRune(r)
		case started && r == ' ':
			// thousands separator in some locales
		case started:
			break scan
		}
	}
	amount := normalizeSeparators(strings.Trim(digits.String(), ".,"))
	if amount == "" {
		return nil, currency
	}
	f, err := strconv.ParseFloat(amount, 64)
	if err != nil || f <= 0 {
		return nil, currency
	}
	return &f, currency
}

// normalizeSeparators rewrites "1.299,95" and "1,299.95" to "1299.95".
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		// A lone comma before one or two digits is a decimal comma.
		if digits := len(s) - lastComma - 1; (digits == 1 || digits == 2) && strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// flexPrice accepts a number, a numeric string, or null in model output.
type flexPrice struct {
	value    *float64
	currency string
}

func (f *flexPrice) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.value, f.currency = ParsePrice(raw)
	return nil
}
