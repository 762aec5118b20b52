package models

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatSats renders n with thousands separators, e.g. 1,250,000.
func FormatSats(n int64) string {
	return printer.Sprintf("%d", n)
}

func plural(n int64, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// RelativeDate renders ts relative to now for anything under a day and as
// "January 2" beyond that.
func RelativeDate(ts, now time.Time) string {
	seconds := int64(math.Round(now.Sub(ts).Seconds()))
	if seconds < 60 {
		return plural(seconds, "second")
	}
	minutes := int64(math.Round(float64(seconds) / 60))
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	hours := int64(math.Round(float64(minutes) / 60))
	if hours < 24 {
		return plural(hours, "hour")
	}
	return ts.Format("January 2")
}
