package indicators

// RSI returns the Relative Strength Index of closes (oldest first) using
// Wilder's smoothing, in [0, 100].
//
// The first average gain/loss is the simple mean over the first period price
// changes, so at least period+1 closes are required. With fewer, or with a
// non-positive period, ok is false and the reading is unavailable.
func RSI(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	gains := make([]float64, period)
	losses := make([]float64, period)
	for i := 1; i <= period; i++ {
		gains[i-1], losses[i-1] = change(closes[i-1], closes[i])
	}
	avgGain, _ := SMA(gains, period)
	avgLoss, _ := SMA(losses, period)

	p := float64(period)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := change(closes[i-1], closes[i])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	return rsiFromAverages(avgGain, avgLoss), true
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	if avgGain == 0 {
		return 0
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
