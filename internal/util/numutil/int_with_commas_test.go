package numutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntWithCommas(t *testing.T) {
	assert.Equal(t, "0", IntWithCommas(0))
	assert.Equal(t, "999", IntWithCommas(999))
	assert.Equal(t, "1,000", IntWithCommas(1000))
	assert.Equal(t, "12,345", IntWithCommas(12345))
	assert.Equal(t, "1,000,000", IntWithCommas(int64(1_000_000)))
	assert.Equal(t, "-12,345", IntWithCommas(-12345))
	assert.Equal(t, "18,446,744,073,709,551,615", IntWithCommas(uint64(math.MaxUint64)))
	assert.Equal(t, "-9,223,372,036,854,775,808", IntWithCommas(int64(math.MinInt64)))
}
