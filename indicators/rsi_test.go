package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Closes from the common 14-period RSI worked example. Expected values are
// exact Wilder smoothing without the rounded intermediate averages.
var wilderCloses = []float64{
	44.34, 44.09, 44.15, 43.61, 44.33, 43.83, 45.10, 45.42,
	45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00,
	46.03, 46.41, 46.22, 45.64,
}

func TestRSIUnavailableWhenShort(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 14; n++ {
		_, ok := RSI(wilderCloses[:n], 14)
		assert.False(t, ok, "len=%d must be unavailable", n)
	}
}

func TestRSINonPositivePeriod(t *testing.T) {
	_, ok := RSI(wilderCloses, 0)
	assert.False(t, ok)
	_, ok = RSI(wilderCloses, -3)
	assert.False(t, ok)
}

func TestRSIWilderReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want float64
	}{
		{15, 66.899},
		{16, 63.560},
		{17, 63.769},
		{18, 66.394},
		{19, 63.901},
		{20, 56.880},
	}

	for _, tt := range tests {
		got, ok := RSI(wilderCloses[:tt.n], 14)
		require.True(t, ok)
		assert.InDelta(t, tt.want, got, 0.001, "closes[:%d]", tt.n)
	}
}

func TestRSIBounds(t *testing.T) {
	t.Parallel()

	up := []float64{1, 2, 3, 4, 5, 6}
	v, ok := RSI(up, 3)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	down := []float64{6, 5, 4, 3, 2, 1}
	v, ok = RSI(down, 3)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	mixed := []float64{10, 11, 10.5, 12, 11, 11.5, 10.8, 12.2}
	v, ok = RSI(mixed, 4)
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestRSIIsDeterministic(t *testing.T) {
	in := append([]float64(nil), wilderCloses...)
	a, _ := RSI(in, 14)
	b, _ := RSI(in, 14)
	assert.Equal(t, a, b)
	assert.Equal(t, wilderCloses, in, "input must not be mutated")
}
