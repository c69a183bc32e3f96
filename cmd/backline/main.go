package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register the MIDI driver

	"github.com/satindergrewal/backline/internal/audio"
	"github.com/satindergrewal/backline/internal/catalog"
	"github.com/satindergrewal/backline/internal/config"
	"github.com/satindergrewal/backline/internal/control"
	"github.com/satindergrewal/backline/internal/display"
	"github.com/satindergrewal/backline/internal/engine"
	"github.com/satindergrewal/backline/internal/sink"
	"github.com/satindergrewal/backline/internal/status"
	"github.com/satindergrewal/backline/internal/stream"
)

var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:   "backline",
	Short: "Loop backing tracks with a click for live performance",
	Long: `backline loops a backing track on the left output channel and a
tempo-locked metronome click on the right. Switching tracks crossfades
without a gap once the selection has settled.

Every flag can also be set with a BACKLINE_* environment variable.`,
	SilenceUsage: true,
	RunE:         run,
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the track library and check each file's format",
	RunE:  listTracks,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI input ports",
	Run: func(cmd *cobra.Command, args []string) {
		for i, name := range control.InPorts() {
			fmt.Printf("%2d  %s\n", i, name)
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.TrackDir, "tracks", cfg.TrackDir, "directory of backing tracks")
	f.StringVar(&cfg.TrackExt, "ext", cfg.TrackExt, "track file extension")
	f.Int64Var(&cfg.HeaderSize, "header-size", cfg.HeaderSize, "bytes to skip at the start of each track")
	f.IntVar(&cfg.AssetChannels, "asset-channels", cfg.AssetChannels, "channels in each track file (1 or 2)")
	f.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "sample rate of the tracks and the output")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file used while the terminal UI is running")

	r := rootCmd.Flags()
	r.DurationVar(&cfg.Crossfade, "crossfade", cfg.Crossfade, "crossfade length")
	r.DurationVar(&cfg.CommitDelay, "commit", cfg.CommitDelay, "settle time before a selection starts the crossfade")
	r.StringVar(&cfg.Curve, "curve", cfg.Curve, "crossfade curve: linear or smooth")
	r.IntVar(&cfg.BPM, "bpm", cfg.BPM, "starting tempo")
	r.StringVar(&cfg.Sink, "sink", cfg.Sink, "audio output: oto, wav or null")
	r.StringVar(&cfg.WAVOut, "out", cfg.WAVOut, "file written by the wav sink")
	r.BoolVar(&cfg.Realtime, "realtime", cfg.Realtime, "pace wav and null outputs to the wall clock")
	r.DurationVar(&cfg.Duration, "duration", cfg.Duration, "stop after this much audio (0 runs until interrupted)")
	r.StringVar(&cfg.MIDIIn, "midi", cfg.MIDIIn, "MIDI input port name (empty disables)")
	r.IntVar(&cfg.MIDIChannel, "midi-channel", cfg.MIDIChannel, "MIDI channel 0-15, -1 for any")
	r.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP listen address for the API and monitor (empty disables)")
	r.BoolVar(&cfg.TUI, "tui", cfg.TUI, "show the terminal UI")

	rootCmd.AddCommand(tracksCmd, portsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, cfg.TUI, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Boot failures return rather than exit, so the deferred closes run.
	fail := func(err error, what string) error {
		logger.Error().Err(err).Msg(what)
		return fmt.Errorf("%s: %w", what, err)
	}

	lib, err := catalog.Scan(cfg.TrackDir, cfg.TrackExt)
	if err != nil {
		return fail(err, "track library")
	}
	checkFormats(lib, logger)

	backend, err := sink.ParseBackend(cfg.Sink)
	if err != nil {
		return err
	}
	out, err := sink.New(sink.Config{
		Backend:    backend,
		SampleRate: cfg.SampleRate,
		Path:       cfg.WAVOut,
		Realtime:   cfg.Realtime,
	}, logger)
	if err != nil {
		return fail(err, "audio output")
	}

	var (
		broadcaster *stream.Broadcaster
		output      sink.Sink = out
	)
	if cfg.HTTPAddr != "" {
		broadcaster = stream.NewBroadcaster()
		output = sink.NewTee(out, broadcaster)
	}

	board := status.NewBoard()
	eng, err := engine.New(engine.Config{
		SampleRate:    cfg.SampleRate,
		HeaderSize:    cfg.HeaderSize,
		AssetChannels: cfg.AssetChannels,
		Crossfade:     cfg.Crossfade,
		CommitDelay:   cfg.CommitDelay,
		BlinkInterval: cfg.BlinkInterval,
		MinGain:       cfg.MinGain,
		Curve:         audio.Curve(cfg.Curve),
		BPM:           cfg.BPM,
		QueueSize:     cfg.QueueSize,
		Duration:      cfg.Duration,
	}, lib, output, board, logger)
	if err != nil {
		out.Close()
		return fail(err, "engine")
	}

	if cfg.MIDIIn != "" {
		mapping := control.DefaultMIDIMapping()
		mapping.Channel = cfg.MIDIChannel
		in, err := control.OpenMIDI(cfg.MIDIIn, mapping, eng, logger)
		if err != nil {
			logger.Warn().Err(err).Strs("available", control.InPorts()).Msg("midi disabled")
		} else {
			defer in.Close()
		}
	}

	if cfg.HTTPAddr != "" {
		server := newServer(cfg.HTTPAddr, eng, board, broadcaster, logger)
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		}()
		go func() {
			logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- eng.Run(ctx)
		cancel()
	}()

	if cfg.TUI {
		updates, unsubscribe := board.Subscribe()
		p := tea.NewProgram(display.NewModel(board, updates, eng), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error().Err(err).Msg("terminal ui")
		}
		unsubscribe()
		cancel()
	} else {
		go display.LogChanges(ctx, board, logger)
	}

	err = <-errc
	st := out.Stats()
	logger.Info().
		Int64("blocks", st.Blocks).
		Dur("slowest_write", st.SlowestSink).
		Int64("write_errors", st.Errors).
		Msg("session ended")
	return err
}

func newServer(addr string, eng *engine.Engine, board *status.Board, b *stream.Broadcaster, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	stream.NewAPI(eng, board, logger).Register(mux)
	mux.Handle("/ws/status", stream.NewStatusSocket(board, logger))
	mux.Handle("/stream", stream.NewHTTPHandler(b, cfg.SampleRate, logger))

	if h, err := stream.NewWebRTCHandler(b, cfg.SampleRate, logger); err != nil {
		logger.Info().Err(err).Msg("webrtc monitor disabled")
	} else {
		mux.Handle("/offer", h)
	}
	return &http.Server{Addr: addr, Handler: mux}
}

// checkFormats warns about WAV files whose header disagrees with the
// configured format. Playback goes ahead regardless.
func checkFormats(lib *catalog.Catalog, logger zerolog.Logger) {
	if !strings.EqualFold(cfg.TrackExt, ".wav") {
		return
	}
	for _, id := range lib.IDs() {
		f, err := lib.Probe(id)
		if err != nil {
			logger.Warn().Err(err).Str("track", id).Msg("probe")
			continue
		}
		if !f.Matches(cfg.SampleRate, cfg.AssetChannels) {
			logger.Warn().
				Str("track", id).
				Int("sample_rate", f.SampleRate).
				Int("channels", f.Channels).
				Int("bit_depth", f.BitDepth).
				Msg("format differs from configuration")
		}
	}
}

func listTracks(cmd *cobra.Command, args []string) error {
	lib, err := catalog.Scan(cfg.TrackDir, cfg.TrackExt)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d tracks)\n", filepath.Clean(lib.Dir()), lib.Len())
	for i := range lib.Len() {
		line := fmt.Sprintf("%3d  %-32s", i+1, lib.Label(i))
		if f, err := lib.Probe(lib.ID(i)); err == nil {
			mark := ""
			if !f.Matches(cfg.SampleRate, cfg.AssetChannels) {
				mark = "  (format mismatch)"
			}
			line += fmt.Sprintf("  %6d Hz  %d ch  %2d bit  %8s%s", f.SampleRate, f.Channels, f.BitDepth, f.Duration.Round(time.Second), mark)
		}
		fmt.Println(line)
	}
	return nil
}
