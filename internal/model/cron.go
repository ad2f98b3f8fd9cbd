package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrISOFormat = errors.New("invalid ISO8601 duration")

// ParseCron parses a 5 field cron expression or a @macro.
func ParseCron(expr string) (cron.Schedule, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return nil, fmt.Errorf("empty cron expression")
	}

	// Macros / @every handled by ParseStandard
	if strings.HasPrefix(e, "@") {
		return cron.ParseStandard(e)
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser5.Parse(e)
}

// CronInterval returns the distance between the two next activations of expr.
func CronInterval(expr string, now time.Time) (time.Duration, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return 0, err
	}
	next1 := schedule.Next(now)
	next2 := schedule.Next(next1)
	return next2.Sub(next1), nil
}

var isoDurationRx = regexp.MustCompile(`^P((?P<day>\d+)D)?(T?(?:(?P<hour>\d+)H)?(?:(?P<minute>\d+)M)?(?:(?P<second>\d+(?:[.,]\d+)?)S)?)?$`)

// ParseISODuration parses the subset of ISO8601 durations used by the config:
// days, hours, minutes and (fractional) seconds. Minutes require the T designator.
func ParseISODuration(dur string) (time.Duration, error) {
	if dur == "" || dur == "P" || dur == "PT" || !isoDurationRx.MatchString(dur) {
		return 0, ErrISOFormat
	}
	match := isoDurationRx.FindStringSubmatch(dur)

	hasT := strings.Contains(dur, "T")
	hasHMS := false

	var ret time.Duration
	for i, name := range isoDurationRx.SubexpNames() {
		part := match[i]
		if i == 0 || name == "" || part == "" {
			continue
		}

		num, frac, err := splitNumber(part)
		if err != nil {
			return 0, err
		}
		var unit time.Duration
		switch name {
		case "day":
			unit = 24 * time.Hour
		case "hour":
			hasHMS = true
			unit = time.Hour
		case "minute":
			hasHMS = true
			// without T P2M would mean months
			if !hasT {
				return 0, ErrISOFormat
			}
			unit = time.Minute
		case "second":
			hasHMS = true
			unit = time.Second
		default:
			return 0, fmt.Errorf("unknown component %s", name)
		}
		ret += time.Duration(num)*unit + time.Duration(frac*float64(unit))
	}

	// eg P2DT
	if hasT && !hasHMS {
		return 0, ErrISOFormat
	}

	return ret, nil
}

func splitNumber(s string) (num int, frac float64, err error) {
	s = strings.Replace(s, ",", ".", 1)
	whole, fraction, ok := strings.Cut(s, ".")
	if ok {
		if len(fraction) > 9 {
			return 0, 0, ErrISOFormat
		}
		var f int
		f, err = strconv.Atoi(fraction)
		if err != nil {
			err = fmt.Errorf("parsing fraction: %w", err)
			return
		}
		if f != 0 {
			frac = float64(f) / math.Pow10(len(fraction))
		}
	}
	num, err = strconv.Atoi(whole)
	if err != nil {
		err = fmt.Errorf("parsing number: %w", err)
	}
	return
}
