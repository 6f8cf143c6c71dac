// Package indicators provides technical analysis indicators computed from
// closing-price series. Every function is pure: the same input series always
// yields the same output.
package indicators

import "fmt"

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	return nil
}
