package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCloses() []float64 {
	return []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}
}

func TestSMA(t *testing.T) {
	ma, err := SMA(testCloses(), 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)
}

func TestSMAErrors(t *testing.T) {
	_, err := SMA(testCloses(), 0)
	assert.Error(t, err)

	_, err = SMA([]float64{1, 2}, 3)
	assert.Error(t, err)
}
