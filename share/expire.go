package share

import "time"

// Expiry styles accepted on upload.
const (
	ExpireStyleMinute  = "minute"
	ExpireStyleHour    = "hour"
	ExpireStyleDay     = "day"
	ExpireStyleForever = "forever"
)

// ExpireAt computes the absolute expiry for a share created at now.
// A nil return means the share never expires. Unknown styles fall back
// to one day so a typo never creates an immortal share by accident.
func ExpireAt(now time.Time, value int, style string) *time.Time {
	if value <= 0 {
		value = 1
	}
	var d time.Duration
	switch style {
	case ExpireStyleMinute:
		d = time.Duration(value) * time.Minute
	case ExpireStyleHour:
		d = time.Duration(value) * time.Hour
	case ExpireStyleDay:
		d = time.Duration(value) * 24 * time.Hour
	case ExpireStyleForever:
		return nil
	default:
		d = 24 * time.Hour
	}
	t := now.Add(d)
	return &t
}
