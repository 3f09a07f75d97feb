package value

import (
	"errors"
	"strconv"
	"time"
)

// ErrInvalidDuration is returned when a duration string carries an
// unrecognised suffix.
var ErrInvalidDuration = errors.New("value: invalid duration string")

// ParseDuration accepts a bare integer ("30", interpreted as seconds) or a
// single-letter-suffixed string ("30s", "5m", "2h"). Anything else is a
// parse failure.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, ErrInvalidDuration
	}
	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, ErrInvalidDuration
		}
		return time.Duration(secs) * time.Second, nil
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	switch last {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, ErrInvalidDuration
	}
}

// TryDuration coerces a Value to a duration: integer kinds are seconds,
// text is parsed with ParseDuration, everything else is an error —
// matching TryFrom<&TestParameter> for Duration in the original source.
func (v Value) TryDuration() (time.Duration, error) {
	switch v.kind {
	case KindUint:
		return time.Duration(v.uintv) * time.Second, nil
	case KindInt:
		return time.Duration(v.intv) * time.Second, nil
	case KindText:
		return ParseDuration(v.text)
	default:
		return 0, errors.New("value: invalid duration value")
	}
}

// DurationText renders d back to the "30s"/"5m"/"2h" form ParseDuration
// accepts, choosing the coarsest exact unit.
func DurationText(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	default:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
}
