package audio

import "errors"

var (
	// ErrUnsupportedChannels is returned when an asset is neither mono nor stereo.
	ErrUnsupportedChannels = errors.New("asset channels must be 1 or 2")

	// ErrSourceClosed is returned by reads on a retired source.
	ErrSourceClosed = errors.New("sample source closed")
)
