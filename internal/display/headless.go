package display

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/backline/internal/status"
)

// LogChanges is the display used when there is no terminal UI: it logs the
// transitions a performer would see until ctx is done.
func LogChanges(ctx context.Context, board *status.Board, logger zerolog.Logger) {
	updates, cancel := board.Subscribe()
	defer cancel()
	logger = logger.With().Str("component", "display").Logger()

	prev := board.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
		}
		cur := board.Snapshot()
		logChange(logger, prev, cur)
		prev = cur
	}
}

func logChange(logger zerolog.Logger, prev, cur status.Snapshot) {
	if cur.Pending && (!prev.Pending || cur.Candidate != prev.Candidate) {
		logger.Info().Str("track", cur.CandidateLabel).Int("index", cur.Candidate).Msg("selecting")
	}
	if cur.Committed != prev.Committed {
		logger.Info().Str("track", cur.CommittedLabel).Int("index", cur.Committed).Msg("now playing")
	}
	if cur.BPM != prev.BPM || cur.Meter != prev.Meter {
		logger.Info().Int("bpm", cur.BPM).Str("meter", cur.Meter).Msg("tempo")
	}
	if cur.Metronome != prev.Metronome {
		logger.Info().Bool("on", cur.Metronome).Msg("metronome")
	}
	if cur.Crossfading && !prev.Crossfading {
		logger.Debug().Str("to", cur.CommittedLabel).Msg("crossfade started")
	}
}
