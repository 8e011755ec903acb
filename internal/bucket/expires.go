package bucket

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// Match duration expressions like "30m", "1h30m", "2d12h"
	durationExprPattern = regexp.MustCompile(`^(?:\d+[smhdwy])+$`)
	durationPartPattern = regexp.MustCompile(`(\d+)([smhdwy])`)
)

// ErrExpiresOverflow is returned when an expiration does not fit a unix timestamp.
var ErrExpiresOverflow = errors.New("expiration out of range")

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 60 * 60,
	"d": 24 * 60 * 60,
	"w": 7 * 24 * 60 * 60,
	"y": 365 * 24 * 60 * 60,
}

// ParseExpires converts an expiration request into an absolute unix timestamp.
// expires is either a number of seconds from now or a duration expression
// such as "1h30m". An empty string means the record never expires (0).
func ParseExpires(expires string, now time.Time) (int64, error) {
	expires = strings.TrimSpace(expires)
	if expires == "" {
		return 0, nil
	}

	var seconds int64
	if strings.IndexFunc(expires, unicode.IsLetter) >= 0 {
		d, err := parseDurationExpr(expires)
		if err != nil {
			return 0, err
		}
		seconds = d
	} else {
		n, err := strconv.ParseInt(expires, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid expiration %q: %w", expires, err)
		}
		seconds = n
	}

	base := now.Unix()
	if (seconds > 0 && base > math.MaxInt64-seconds) || (seconds < 0 && base < math.MinInt64-seconds) {
		return 0, fmt.Errorf("invalid expiration %q: %w", expires, ErrExpiresOverflow)
	}
	return base + seconds, nil
}

// parseDurationExpr returns the number of seconds in a duration expression.
func parseDurationExpr(s string) (int64, error) {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if !durationExprPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	var total int64
	for _, m := range durationPartPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		unit := unitSeconds[m[2]]
		if n > math.MaxInt64/unit || total > math.MaxInt64-n*unit {
			return 0, fmt.Errorf("invalid duration %s: %w", s, ErrExpiresOverflow)
		}
		total += n * unit
	}
	return total, nil
}

// remaining formats the seconds left before expiration. Records without an
// expiration report "0".
func remaining(r Record, now time.Time) string {
	if r.Expires == 0 {
		return "0"
	}
	return strconv.FormatInt(r.Expires-now.Unix(), 10)
}

