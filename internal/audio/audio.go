package audio

import (
	"math"
	"time"
)

const (
	DefaultSampleRate = 44100
	BitDepth          = 16
	Channels          = 2                      // output: left = backing track, right = click
	BlockFrames       = 256                    // frames per engine cycle
	BlockSamples      = BlockFrames * Channels // interleaved samples per block
	BlockBytes        = BlockSamples * 2       // bytes per block (int16 = 2 bytes)
)

// BlockDuration returns the wall time one block covers at sampleRate.
func BlockDuration(sampleRate int) time.Duration {
	return time.Duration(BlockFrames) * time.Second / time.Duration(sampleRate)
}

// FramesFor converts a duration to a whole number of frames at sampleRate.
func FramesFor(d time.Duration, sampleRate int) int {
	return int(int64(sampleRate) * d.Milliseconds() / 1000)
}

// Saturate rounds v to the nearest integer and clips it to the int16 range.
func Saturate(v float64) int16 {
	v = math.Round(v)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
