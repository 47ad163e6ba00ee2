package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTableDelays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, int(DefaultTable.Delay(0)))
	assert.Equal(t, 30, int(DefaultTable.Delay(1).Seconds()))
	assert.Equal(t, 60, int(DefaultTable.Delay(2).Seconds()))
}

func TestDelayClampsAtLastEntryPastTableLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTable.Delay(5), DefaultTable.Delay(100))
}

func TestExhaustedAtMaxRetries(t *testing.T) {
	t.Parallel()

	assert.False(t, DefaultTable.Exhausted(4))
	assert.True(t, DefaultTable.Exhausted(5))
	assert.True(t, DefaultTable.Exhausted(6))
}
