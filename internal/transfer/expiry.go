package transfer

import (
	"time"
)

const (
	dateLayout   = "2006-01-02"
	expiryLayout = "2006-01-02T15:04:05.000Z"
)

// NormalizeExpiry turns a YYYY-MM-DD calendar date into the UTC timestamp of the last
// millisecond of that day in loc. The date is read as UTC midnight first and its local
// calendar day is used, which is how browsers interpret a bare ISO date.
func NormalizeExpiry(date string, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", err
	}

	y, m, d := parsed.In(loc).Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return endOfDay.UTC().Format(expiryLayout), nil
}
