package validation

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date string matches none of the accepted formats.
var ErrInvalidDate = errors.New("invalid date")

// isoLayouts are tried in order before the day-first formats.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// dd/mm/yyyy, dd-mm-yyyy or dd.mm.yyyy with an optional hh:mm[:ss] suffix.
var dayFirstRegex = regexp.MustCompile(`^(\d{1,2})([/.-])(\d{1,2})([/.-])(\d{4})(?:[ T,]+(\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

// ParseLooseDate parses the end/start times stored on allocations. ISO 8601
// values are accepted as-is; day-first values are decomposed explicitly into
// day, month and year and interpreted in UTC. Anything else, including dates
// that do not exist such as 31/02/2024, yields ErrInvalidDate.
func ParseLooseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}

	m := dayFirstRegex.FindStringSubmatch(value)
	if m == nil || m[2] != m[4] {
		return time.Time{}, ErrInvalidDate
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[5])

	var hour, minute, second int
	if m[6] != "" {
		hour, _ = strconv.Atoi(m[6])
		minute, _ = strconv.Atoi(m[7])
		if m[8] != "" {
			second, _ = strconv.Atoi(m[8])
		}
		if hour > 23 || minute > 59 || second > 59 {
			return time.Time{}, ErrInvalidDate
		}
	}

	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrInvalidDate
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes overflow (31/02 -> 02/03); reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrInvalidDate
	}

	return t, nil
}
