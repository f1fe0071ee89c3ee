package supervisor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		max      string // empty means no maximum
		expected []string
	}{
		{name: "no maximum is a single chunk", total: "100", max: "", expected: []string{"100"}},
		{name: "exact multiple", total: "80", max: "40", expected: []string{"40", "40"}},
		{name: "remainder chunk is smaller", total: "100", max: "40", expected: []string{"40", "40", "20"}},
		{name: "total below maximum", total: "7", max: "40", expected: []string{"7"}},
		{name: "fractional amounts", total: "2.5", max: "1", expected: []string{"1", "1", "0.5"}},
		{name: "zero total", total: "0", max: "40", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			var max *decimal.Decimal
			if tt.max != "" {
				m := decimal.RequireFromString(tt.max)
				max = &m
			}

			chunks := Split(total, max)
			require.Len(t, chunks, len(tt.expected))
			sum := decimal.Zero
			for i, c := range chunks {
				assert.True(t, c.Equal(decimal.RequireFromString(tt.expected[i])),
					"chunk %d: got %s want %s", i, c, tt.expected[i])
				assert.True(t, c.IsPositive())
				if max != nil {
					assert.True(t, c.LessThanOrEqual(*max))
				}
				sum = sum.Add(c)
			}
			if len(chunks) > 0 {
				assert.True(t, sum.Equal(total), "chunks must sum exactly to total")
			}
		})
	}
}

func TestSplitChunkCount(t *testing.T) {
	// Chunk count is ceil(total/max) for positive inputs.
	max := decimal.NewFromInt(7)
	for total := int64(1); total <= 50; total++ {
		chunks := Split(decimal.NewFromInt(total), &max)
		want := (total + 6) / 7
		assert.Len(t, chunks, int(want), "total=%d", total)
	}
}
