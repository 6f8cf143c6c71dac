// Package signals classifies threshold crossings between two consecutive
// oscillator readings.
package signals

import "fmt"

// Signal is the outcome of comparing two readings.
type Signal int

const (
	None Signal = iota
	Entry
	Exit
)

func (s Signal) String() string {
	switch s {
	case Entry:
		return "ENTRY"
	case Exit:
		return "EXIT"
	default:
		return "NONE"
	}
}

// Reading is an oscillator value that may be unavailable, for example when
// the price history was too short.
type Reading struct {
	Value     float64
	Available bool
}

// At returns an available reading.
func At(v float64) Reading { return Reading{Value: v, Available: true} }

// Unavailable is the zero reading.
var Unavailable = Reading{}

// Thresholds are the static crossing levels. Buy must be below Sell and both
// must lie strictly inside (0, 100).
type Thresholds struct {
	Buy  float64
	Sell float64
}

// Validate reports whether the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.Buy <= 0 || t.Buy >= 100 {
		return fmt.Errorf("buy threshold %.2f must be in (0,100)", t.Buy)
	}
	if t.Sell <= 0 || t.Sell >= 100 {
		return fmt.Errorf("sell threshold %.2f must be in (0,100)", t.Sell)
	}
	if t.Buy >= t.Sell {
		return fmt.Errorf("buy threshold %.2f must be below sell threshold %.2f", t.Buy, t.Sell)
	}
	return nil
}

// EntryCross reports an upward crossing of the buy threshold.
func (t Thresholds) EntryCross(prior, current Reading) bool {
	if !prior.Available || !current.Available {
		return false
	}
	return prior.Value <= t.Buy && current.Value > t.Buy
}

// ExitCross reports a downward crossing of the sell threshold.
func (t Thresholds) ExitCross(prior, current Reading) bool {
	if !prior.Available || !current.Available {
		return false
	}
	return prior.Value >= t.Sell && current.Value < t.Sell
}

// Detect classifies the transition from prior to current. Crossings are
// edge-triggered: holding above or below a level across cycles yields None.
// Since Buy < Sell, at most one of the two crossings can fire.
func (t Thresholds) Detect(prior, current Reading) Signal {
	switch {
	case t.EntryCross(prior, current):
		return Entry
	case t.ExitCross(prior, current):
		return Exit
	default:
		return None
	}
}
