package scheduler

import (
	"strings"
	"time"

	"github.com/marketscout/backend/pkg/errs"
)

// ParseCadence accepts a Go duration string ("15m", "2h30m"), an
// "every " prefixed duration, or one of the hourly/daily/weekly
// aliases.
func ParseCadence(expression string) (time.Duration, error) {
	expr := strings.ToLower(strings.TrimSpace(expression))
	expr = strings.TrimPrefix(expr, "every ")

	switch expr {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, errs.Validation("invalid cadence expression %q", expression)
	}
	if d < time.Minute {
		return 0, errs.Validation("cadence %q is below the one minute floor", expression)
	}
	return d, nil
}
