package plan

import (
	"fmt"
	"time"

	"github.com/sosodev/duration"
)

// ParseDuration parses an ISO-8601 duration ("PT10M", "P2D") into a
// time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	return d.ToTimeDuration(), nil
}
