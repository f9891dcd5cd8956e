package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedVTT = `WEBVTT

1
00:00:01.000 --> 00:00:06.000
Alice: Welcome everyone to the townhall.

2
00:00:06.500 --> 00:00:12.000
Bob: Thanks Alice, happy to be here.

3
00:00:12.500 --> 00:00:15.000
Applause and general chatter in the meeting room with no single attributed name

4
00:00:15.500 --> 00:00:16.000
Carol:
`

func TestParseVTTWellFormed(t *testing.T) {
	got := ParseVTT(wellFormedVTT)
	require.Len(t, got, 3)

	assert.Equal(t, "Alice", got[0].Speaker)
	assert.Equal(t, "Welcome everyone to the townhall.", got[0].Content)
	assert.Equal(t, "00:00:01.000", got[0].StartTime)
	assert.Equal(t, "00:00:06.000", got[0].EndTime)
	assert.InDelta(t, 5.0, got[0].DurationSeconds, 1e-9)
	assert.True(t, got[0].HasTiming)

	assert.Equal(t, "Bob", got[1].Speaker)
	assert.InDelta(t, 5.5, got[1].DurationSeconds, 1e-9)

	// Long line without a plausible speaker prefix.
	assert.Equal(t, "Unknown Speaker", got[2].Speaker)
}

// Teams exports prefix the file with a byte-order mark; the header check
// must still see WEBVTT and use the primary path.
func TestParseVTTByteOrderMarkPrefix(t *testing.T) {
	got := ParseVTT("\uFEFF" + wellFormedVTT)
	require.Len(t, got, 3)
	assert.Equal(t, "Alice", got[0].Speaker)
	assert.Equal(t, "00:00:01.000", got[0].StartTime)
}

func TestParseVTTFallbackOnMissingHeader(t *testing.T) {
	broken := `1
00:00:01.000 --> 00:00:06.000
Alice: Welcome everyone to the townhall.

2
00:00:06.500 --> 00:00:12.000
Bob: Thanks Alice, happy to be here.
`
	got := ParseVTT(broken)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Speaker)
	assert.Equal(t, "Welcome everyone to the townhall.", got[0].Content)
	assert.Equal(t, "Bob", got[1].Speaker)
}

// Primary and fallback paths must agree on well-formed input.
func TestParseVTTPrimaryFallbackEquivalence(t *testing.T) {
	primary := ParseVTT(wellFormedVTT)
	fallback := parseVTTFallback(wellFormedVTT)

	require.Equal(t, len(primary), len(fallback))
	for i := range primary {
		assert.Equal(t, primary[i].Speaker, fallback[i].Speaker)
		assert.Equal(t, primary[i].Content, fallback[i].Content)
		assert.InDelta(t, primary[i].DurationSeconds, fallback[i].DurationSeconds, 1e-9)
	}
}

func TestParseVTTNegativeDurationPassesThrough(t *testing.T) {
	vtt := `WEBVTT

00:00:10.000 --> 00:00:04.000
Alice: timestamps came in reversed
`
	got := ParseVTT(vtt)
	require.Len(t, got, 1)
	assert.InDelta(t, -6.0, got[0].DurationSeconds, 1e-9)
}

func TestParseVTTMalformedTimesYieldZero(t *testing.T) {
	vtt := `WEBVTT

xx:yy:zz.000 --> 00:00:aa.000
Alice: still counts as an utterance
`
	got := ParseVTT(vtt)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.0, got[0].DurationSeconds, 1e-9)
}

func TestParseVTTSkipsNotesAndSettings(t *testing.T) {
	vtt := `WEBVTT

NOTE
This block is metadata, not a cue.

00:00:01.000 --> 00:00:02.000 align:start position:0%
Alice: hello
`
	got := ParseVTT(vtt)
	require.Len(t, got, 1)
	assert.Equal(t, "00:00:02.000", got[0].EndTime)
}

func TestParseVTTEmptyInput(t *testing.T) {
	assert.Empty(t, ParseVTT(""))
	assert.Empty(t, ParseVTT("WEBVTT\n"))
}
