package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsMonotonic(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, New(at))
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids minted in the same millisecond must sort in order")

	seen := map[string]bool{}
	for _, s := range ids {
		assert.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
}
