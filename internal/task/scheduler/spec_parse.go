package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a schedule string reduced to something robfig/cron accepts.
//
// Accepted forms (status_cron and any other job schedule):
//   - cron: "*/5 * * * *", "0 30 3 * * *", "@hourly", "@every 55m"
//   - interval: "55m", "2h30m", or "HH:MM" read as a length ("01:30" is 90m)
//   - daily: "at:03:30" or "daily:03:30" runs once a day at that wall time
//
// "cron:", "interval:" and "every:" prefixes force the cron or interval reading.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron", "duration", "hhmm" or "daily"
}

// Spec returns the robfig/cron spec string for p.
func (p ParsedSpec) Spec() string {
	if p.Kind == SpecInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

// specParser accepts 5-field and 6-field (leading seconds) expressions.
var specParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

var clockRe = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

var errEmptySchedule = errors.New("schedule required")

// ParseSchedule classifies raw and checks it against the cron parser, so a
// bad status_cron fails config validation instead of the first reload.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errEmptySchedule
	}
	ps, err := classify(s)
	if err != nil {
		return ParsedSpec{}, err
	}
	if _, err := specParser.Parse(ps.Spec()); err != nil {
		return ParsedSpec{}, fmt.Errorf("schedule %q: %w", raw, err)
	}
	return ps, nil
}

func classify(s string) (ParsedSpec, error) {
	prefix, rest, hasPrefix := strings.Cut(s, ":")
	if hasPrefix {
		rest = strings.TrimSpace(rest)
		switch strings.ToLower(prefix) {
		case "cron":
			if rest == "" {
				return ParsedSpec{}, errors.New("cron expression required after 'cron:'")
			}
			return ParsedSpec{Kind: SpecCron, Cron: rest, Source: "cron"}, nil
		case "interval", "every":
			return interval(rest)
		case "at", "daily":
			return daily(rest)
		}
	}

	if s[0] == '@' || strings.ContainsAny(s, " \t\r\n") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}
	ps, err := interval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', an interval like '55m' or '02:30', or 'at:03:30')", s)
	}
	return ps, nil
}

func interval(v string) (ParsedSpec, error) {
	if v == "" {
		return ParsedSpec{}, errors.New("interval required")
	}
	source := "duration"
	var d time.Duration
	if h, m, ok := clock(v); ok {
		if m > 59 {
			return ParsedSpec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		source, d = "hhmm", time.Duration(h)*time.Hour+time.Duration(m)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return ParsedSpec{}, fmt.Errorf("invalid interval %q (use HH:MM or a duration like '55m')", v)
		}
	}
	if d <= 0 {
		return ParsedSpec{}, errors.New("interval must be > 0")
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: source}, nil
}

func daily(v string) (ParsedSpec, error) {
	h, m, ok := clock(v)
	if !ok || h > 23 || m > 59 {
		return ParsedSpec{}, fmt.Errorf("invalid time of day %q (use HH:MM, 00:00 to 23:59)", v)
	}
	return ParsedSpec{Kind: SpecCron, Cron: fmt.Sprintf("%d %d * * *", m, h), Source: "daily"}, nil
}

func clock(v string) (h, m int, ok bool) {
	g := clockRe.FindStringSubmatch(v)
	if g == nil {
		return 0, 0, false
	}
	h, _ = strconv.Atoi(g[1])
	m, _ = strconv.Atoi(g[2])
	return h, m, true
}
