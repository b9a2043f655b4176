package traffic

import (
	"fmt"
	"strconv"
)

// Squawk is a transponder code, stored as its integer value. The wire and
// display form is always four octal digits.
type Squawk int

// ParseSquawk parses a four-digit octal transponder code.
func ParseSquawk(s string) (Squawk, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("squawk code must be 4 digits: %q", s)
	}
	code, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid squawk code %q: %w", s, err)
	}
	return Squawk(code), nil
}

func (s Squawk) String() string {
	return fmt.Sprintf("%04o", int(s))
}
