package pagination

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PageSize is the number of images one upstream request asks for.
const PageSize = 10

// QueryTimes returns how many pages are requested for limit.
//
// One page, plus limit%10 extra pages when limit exceeds a page. This does
// not scale with limit: 100 yields a single page and at most 10 images.
func QueryTimes(limit int) int {
	queryTimes := 1
	if limit > PageSize {
		queryTimes += limit % PageSize
	}
	return queryTimes
}

// decimalLimit matches a signed decimal literal with optional fraction and exponent.
var decimalLimit = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseLimit validates the raw limit query value using JavaScript Number
// coercion rules.
//
// Only the empty string is missing. Whitespace is trimmed and a blank value
// is 0. Unsigned 0x, 0o and 0b literals are accepted; decimal literals may
// carry a fraction or exponent as long as the value is integral ("5.0",
// "1e2"). Values outside the int range are invalid.
func ParseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, ErrMissingLimit
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}

	if base := prefixBase(s); base != 0 {
		// ParseUint rejects signs and underscores for an explicit base.
		n, err := strconv.ParseUint(s[2:], base, 64)
		if err != nil || n > math.MaxInt {
			return 0, ErrInvalidLimit
		}
		return int(n), nil
	}

	if !decimalLimit.MatchString(s) {
		return 0, ErrInvalidLimit
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, ErrInvalidLimit
	}
	// float64(math.MaxInt) rounds up to a power of two, hence >=.
	if f < math.MinInt || f >= math.MaxInt {
		return 0, ErrInvalidLimit
	}
	return int(f), nil
}

// prefixBase returns the base of a 0x/0o/0b literal, or 0.
func prefixBase(s string) int {
	if len(s) < 3 || s[0] != '0' {
		return 0
	}
	switch s[1] {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}
