package jeebie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// With no cartridge loaded, ROM reads come back as 0xFF and the CPU settles
// into a tight RST 38H loop with the LCD off, so the PPU renders the same
// blank frame every time -- a good stand-in for how a Blargg ROM behaves
// once it has settled on its result screen.
func TestRunUntilComplete_StopsOnRepeatedFrames(t *testing.T) {
	dmg := New()
	dmg.ConfigureCompletionDetection(50, 3)

	err := dmg.RunUntilComplete()
	assert.NoError(t, err)
	assert.Less(t, dmg.GetFrameCount(), uint64(50), "should stop before exhausting maxFrames once frames repeat")
}

func TestRunUntilComplete_RespectsMaxFrames(t *testing.T) {
	dmg := New()
	// minLoopCount higher than maxFrames can ever reach forces the hard cap.
	dmg.ConfigureCompletionDetection(10, 1000)

	err := dmg.RunUntilComplete()
	assert.NoError(t, err)
	assert.Equal(t, uint64(10), dmg.GetFrameCount())
}

func TestRunUntilComplete_DefaultsWhenUnconfigured(t *testing.T) {
	dmg := New()

	err := dmg.RunUntilComplete()
	assert.NoError(t, err)
	assert.LessOrEqual(t, dmg.GetFrameCount(), uint64(defaultMaxFrames))
	assert.Greater(t, dmg.GetFrameCount(), uint64(0))
}
