package warranty

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LifetimeExpiry stands in for warranties that never run out.
var LifetimeExpiry = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

var (
	yearsPattern  = regexp.MustCompile(`(\d+)\s*(?:-\s*)?(?:years?|yrs?)\b`)
	monthsPattern = regexp.MustCompile(`(\d+)\s*(?:-\s*)?(?:months?|mos?)\b`)
)

// Expiry adds the duration written in period to the purchase date. Text that
// names no duration counts as one year.
func Expiry(purchase time.Time, period string) time.Time {
	p := strings.ToLower(period)

	if strings.Contains(p, "lifetime") {
		return LifetimeExpiry
	}

	if n, ok := leadingCount(yearsPattern, p); ok {
		return purchase.AddDate(n, 0, 0)
	}

	if n, ok := leadingCount(monthsPattern, p); ok {
		return purchase.AddDate(0, n, 0)
	}

	return purchase.AddDate(1, 0, 0)
}

func leadingCount(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	return n, true
}

// DaysUntil counts started days between now and expiry; zero or less means expired.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

type Status string

const (
	StatusExpired      Status = "expired"
	StatusExpiringSoon Status = "expiring-soon"
	StatusExpiring3m   Status = "expiring-3m"
	StatusExpiring6m   Status = "expiring-6m"
	StatusActive       Status = "active"
)

var statuses = []Status{StatusExpired, StatusExpiringSoon, StatusExpiring3m, StatusExpiring6m, StatusActive}

func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == strings.TrimSpace(strings.ToLower(s)) {
			return st, nil
		}
	}

	return "", fmt.Errorf("unknown warranty status %q", s)
}

// Matches reports whether a warranty with days left falls in the bucket.
// The expiring buckets overlap: 45 days left matches expiring-soon,
// expiring-3m, expiring-6m and active alike.
func Matches(status Status, days int) bool {
	switch status {
	case StatusExpired:
		return days <= 0
	case StatusExpiringSoon, StatusExpiring3m:
		return days >= 1 && days <= 90
	case StatusExpiring6m:
		return days >= 1 && days <= 180
	case StatusActive:
		return days > 0
	}

	return false
}

// Badge is the single status shown next to a receipt.
func Badge(days int) Status {
	switch {
	case days <= 0:
		return StatusExpired
	case days <= 90:
		return StatusExpiringSoon
	}

	return StatusActive
}

type Info struct {
	Expiry   time.Time
	DaysLeft int
	Badge    Status
}

func Evaluate(purchase time.Time, period string, now time.Time) Info {
	expiry := Expiry(purchase, period)
	days := DaysUntil(expiry, now)

	return Info{Expiry: expiry, DaysLeft: days, Badge: Badge(days)}
}
