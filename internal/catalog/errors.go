package catalog

import "errors"

var (
	// ErrNoAssets means the track directory holds nothing playable.
	ErrNoAssets = errors.New("no audio assets found")

	// ErrNotFound means the requested asset does not exist.
	ErrNotFound = errors.New("asset not found")

	// ErrNotWAV is returned by Probe for files without a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a WAV file")
)
