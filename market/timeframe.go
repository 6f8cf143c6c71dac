package market

import (
	"fmt"
	"time"
)

// timeframes are the candle intervals spot exchanges accept, keyed by their
// wire name.
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// TimeframeDuration maps an interval name such as "1m" or "4h" to its length.
func TimeframeDuration(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
	return d, nil
}

// TimeframeString is the inverse of TimeframeDuration.
func TimeframeString(d time.Duration) (string, error) {
	for name, v := range timeframes {
		if v == d {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot map timeframe: %s", d)
}
