package flow

import (
	"regexp"
	"strconv"
	"strings"
)

var amountRe = regexp.MustCompile(`^[0-9]+$`)

// normalizeDigits maps Persian and Arabic-Indic digits to ASCII so users can
// type amounts and card numbers with their native keyboard.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

// parseAmount accepts a non-empty run of digits that fits in int64.
func parseAmount(text string) (int64, bool) {
	text = normalizeDigits(text)
	if !amountRe.MatchString(text) {
		return 0, false
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCardNumber strips spaces and dashes and accepts 16 to 19 digits that
// pass the Luhn check.
func parseCardNumber(text string) (string, bool) {
	var b strings.Builder
	for _, r := range normalizeDigits(strings.TrimSpace(text)) {
		switch {
		case r == ' ' || r == '-':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", false
		}
	}
	digits := b.String()
	if len(digits) < 16 || len(digits) > 19 || !luhnValid(digits) {
		return "", false
	}
	return digits, true
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// MaskCard keeps the first six and last four digits.
func MaskCard(digits string) string {
	if len(digits) <= 10 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:6] + strings.Repeat("*", len(digits)-10) + digits[len(digits)-4:]
}
