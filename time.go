package accounts

import "time"

// IsWithin reports whether t happened less than d ago
func IsWithin(t time.Time, d time.Duration) bool {
	return t.After(time.Now().Add(-d))
}
