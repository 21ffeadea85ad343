package adslot

import (
	"testing"

	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/stretchr/testify/assert"
)

func TestPositionOpenRTB(t *testing.T) {
	assert.Nil(t, PositionUndefined.OpenRTB())

	pos := PositionFooter.OpenRTB()
	if assert.NotNil(t, pos) {
		assert.Equal(t, adcom1.PlacementPosition(5), *pos)
	}
	assert.Equal(t, adcom1.PlacementPosition(0), *PositionUnknown.OpenRTB())
}

func TestParsePosition(t *testing.T) {
	testCases := []struct {
		in       string
		expected Position
	}{
		{in: "header", expected: PositionHeader},
		{in: " Footer ", expected: PositionFooter},
		{in: "SIDEBAR", expected: PositionSidebar},
		{in: "full_screen", expected: PositionFullScreen},
		{in: "unknown", expected: PositionUnknown},
		{in: "", expected: PositionUndefined},
		{in: "bottom", expected: PositionUndefined},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, ParsePosition(test.in), test.in)
	}
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("Interstitial")
	assert.True(t, ok)
	assert.Equal(t, FormatInterstitial, f)
	assert.Equal(t, "interstitial", f.String())

	_, ok = ParseFormat("audio")
	assert.False(t, ok)
}
