package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeToSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:00:01.000", 1.0},
		{"00:01:30.500", 90.5},
		{"01:00:00.000", 3600.0},
		{"10:20:30.250", 10*3600 + 20*60 + 30.25},
		{"00:00:05", 5.0},
		{"garbage", 0.0},
		{"00:00", 0.0},
		{"aa:bb:cc.ddd", 0.0},
		{"", 0.0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, timeToSeconds(tc.in), 1e-9, "input %q", tc.in)
	}
}

func TestTimeToSecondsMonotonic(t *testing.T) {
	// Textual ordering of well-formed timestamps implies numeric ordering.
	ordered := []string{"00:00:01.000", "00:00:06.000", "00:01:00.000", "01:00:00.000"}
	for i := 0; i < len(ordered)-1; i++ {
		assert.LessOrEqual(t, timeToSeconds(ordered[i]), timeToSeconds(ordered[i+1]))
	}
}

func TestSplitSpeaker(t *testing.T) {
	speaker, content := splitSpeaker("Alice: we should ship this")
	assert.Equal(t, "Alice", speaker)
	assert.Equal(t, "we should ship this", content)

	// Prefix too long to be a name stays in the content.
	long := "this sentence happens to contain a colon much later than any name would: yes"
	speaker, content = splitSpeaker(long)
	assert.Equal(t, "Unknown Speaker", speaker)
	assert.Equal(t, long, content)

	speaker, content = splitSpeaker("no separator at all")
	assert.Equal(t, "Unknown Speaker", speaker)
	assert.Equal(t, "no separator at all", content)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("mp3", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
