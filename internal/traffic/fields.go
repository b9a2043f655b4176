package traffic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseFlightPlanAltitude normalizes a filed cruise altitude to feet. Filed
// altitudes show up in several shapes: flight levels ("FL380", "FL 380",
// "F280"), hundreds-of-feet prefixed forms ("A050"), bare flight levels
// ("295", "050") and plain feet ("2500"). An empty field means no altitude
// was filed and normalizes to zero.
func ParseFlightPlanAltitude(value string) (int, error) {
	s := strings.TrimSpace(strings.ToUpper(value))
	if s == "" {
		return 0, nil
	}

	// FL and F always mark a flight level in hundreds of feet.
	for _, prefix := range []string{"FL", "F"} {
		if strings.HasPrefix(s, prefix) {
			n, err := strconv.Atoi(strings.TrimSpace(s[len(prefix):]))
			if err != nil {
				return 0, &AltitudeFormatError{Value: value}
			}
			return n * 100, nil
		}
	}

	// An A prefix is only a marker; the bare-number rule below decides
	// whether the remainder is a flight level or plain feet.
	s = strings.TrimSpace(strings.TrimPrefix(s, "A"))

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &AltitudeFormatError{Value: value}
	}
	// Small bare numbers are flight levels filed without a prefix.
	if n < 1000 {
		return n * 100, nil
	}
	return n, nil
}

// ParseStatusDateTime parses the 14-digit positional timestamp
// (yyyyMMddHHmmss) used for logon times in the status file. An empty field
// yields the zero time; a present but malformed value is an error.
func ParseStatusDateTime(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("20060102150405", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid status timestamp %q: %w", value, err)
	}
	return t, nil
}

// parseFlightPlanDateTime interprets a filed clock field ("35", "835",
// "1450") as a UTC instant on the current day. Filed times are free-form user
// input, so anything unparsable yields nil rather than an error.
func parseFlightPlanDateTime(value string, now time.Time) *time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}

	var hours, minutes int
	var err error
	switch len(s) {
	case 1, 2:
		minutes, err = strconv.Atoi(s)
	case 3:
		hours, err = strconv.Atoi(s[:1])
		if err == nil {
			minutes, err = strconv.Atoi(s[1:])
		}
	case 4:
		hours, err = strconv.Atoi(s[:2])
		if err == nil {
			minutes, err = strconv.Atoi(s[2:])
		}
	default:
		return nil
	}
	if err != nil || hours > 23 || minutes > 59 {
		return nil
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, time.UTC)
	return &t
}

// atoiOrZero parses lenient numeric fields (enroute and fuel hour/minute
// pairs are user-entered and frequently blank or junk).
func atoiOrZero(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

// parseFloatOrZero parses lenient coordinate fields.
func parseFloatOrZero(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}
