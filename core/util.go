package core

import (
	"strings"
	"time"
	_ "time/tzdata" // user timezones must resolve in minimal containers
)

// NowFunc returns the current time. Tests replace it to travel in time.
var NowFunc = time.Now // mockable

// Now returns NowFunc() in UTC.
func Now() time.Time {
	return NowFunc().UTC()
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// LoadLocation returns the named IANA location, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDate formats t as a YYYY-MM-DD calendar date in the named timezone.
func LocalDate(t time.Time, tz string) string {
	return t.In(LoadLocation(tz)).Format(DateLayout)
}

const DateLayout = "2006-01-02"
