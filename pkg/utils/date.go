package utils

import (
	"fmt"
	"time"
)

// DateLayout is the plain calendar date accepted alongside RFC 3339.
const DateLayout = "2006-01-02"

// ParseDate accepts RFC 3339 timestamps or plain dates. Plain dates are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
