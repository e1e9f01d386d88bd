package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDurationUnderAnHour(t *testing.T) {
	assert.Equal(t, "23m 45s", FormatDuration(23*60+45))
}

func TestFormatDurationOverAnHour(t *testing.T) {
	assert.Equal(t, "1h 12m 34s", FormatDuration(3600+12*60+34))
}

func TestFormatDurationZero(t *testing.T) {
	assert.Equal(t, "0m 0s", FormatDuration(0))
}
