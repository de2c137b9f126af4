package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationRe     = regexp.MustCompile(`^(?:\d+[wdhms])+$`)
	durationPartRe = regexp.MustCompile(`(\d+)([wdhms])`)
)

var unitNames = map[string]string{
	"w": "weeks",
	"d": "days",
	"h": "hours",
	"m": "minutes",
	"s": "seconds",
}

var unitSize = map[string]time.Duration{
	"w": 7 * 24 * time.Hour,
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

// ParseDuration parses the chat duration grammar: one or more <n><unit>
// groups with unit in w, d, h, m, s, each unit at most once (e.g. 1w2d3h4m5s).
func ParseDuration(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !durationRe.MatchString(s) {
		return 0, parseErr("Invalid duration %q. Use something like 1h30m or 2d.", raw)
	}

	seen := map[string]bool{}
	var total time.Duration
	for _, m := range durationPartRe.FindAllStringSubmatch(s, -1) {
		unit := m[2]
		if seen[unit] {
			return 0, parseErr("Specify %s only once.", unitNames[unit])
		}
		seen[unit] = true

		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > int64(math.MaxInt64/unitSize[unit]) {
			return 0, parseErr("Duration %q is too long.", raw)
		}
		part := time.Duration(n) * unitSize[unit]
		if total > math.MaxInt64-part {
			return 0, parseErr("Duration %q is too long.", raw)
		}
		total += part
	}
	if total <= 0 {
		return 0, parseErr("Duration must be greater than zero.")
	}
	return total, nil
}

// FormatDuration renders d in the same grammar ParseDuration accepts,
// truncated to seconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	var b strings.Builder
	for _, u := range []string{"w", "d", "h", "m", "s"} {
		size := unitSize[u]
		if d >= size {
			b.WriteString(strconv.FormatInt(int64(d/size), 10))
			b.WriteString(u)
			d %= size
		}
	}
	return b.String()
}
