// Package timeutil renders elapsed time compactly.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

type unit struct {
	label string
	value time.Duration
}

var units = []unit{
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// Compact renders d with week/day/hour/minute/second tokens, keeping at most
// the largest max units ("1w2d", "3h5m"). max <= 0 keeps every unit.
func Compact(d time.Duration, max int) string {
	if d < time.Second {
		return "0s"
	}

	var parts []string
	remaining := d
	for _, u := range units {
		if max > 0 && len(parts) == max {
			break
		}
		if remaining < u.value {
			if len(parts) > 0 {
				// Units are only kept while they are adjacent.
				break
			}
			continue
		}
		count := remaining / u.value
		remaining -= count * u.value
		parts = append(parts, fmt.Sprintf("%d%s", count, u.label))
	}
	return strings.Join(parts, "")
}

// Ago renders how long before now t was, like "2h5m ago". Anything under a
// minute is "just now" and times in the future are clamped to it.
func Ago(now, t time.Time) string {
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}
	return Compact(d.Truncate(time.Minute), 2) + " ago"
}
