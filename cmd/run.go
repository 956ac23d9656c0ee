// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"spectrometer/internal/analysis"
	"spectrometer/internal/audio"
	"spectrometer/internal/config"
	"spectrometer/internal/input"
	applog "spectrometer/internal/log"
	"spectrometer/internal/transport"
	"spectrometer/internal/transport/udp"
	"spectrometer/internal/tui"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// statusInterval is how often headless mode logs the analyzer counters.
const statusInterval = 5 * time.Second

// Run executes the command chosen by ParseArgs until it finishes or ctx is
// cancelled.
func Run(ctx context.Context, opts *Options) error {
	switch opts.Command {
	case CommandList:
		return runList(os.Stdout)
	case CommandAnalyze:
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		return runAnalyze(ctx, cfg, opts.File, os.Stdout)
	case CommandLive:
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		return runLive(ctx, cfg, opts)
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath, opts.Apply)
	if err != nil {
		return nil, err
	}
	applog.SetLevel(cfg.Level())
	return cfg, nil
}

func runList(w io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(w)
}

// runAnalyze feeds a whole WAV file through an inline analyzer as fast as it
// decodes and reports where the final spectrum peaks.
func runAnalyze(ctx context.Context, cfg *config.Config, path string, w io.Writer) error {
	src, err := input.OpenWAV(path, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}
	defer src.Close()
	src.Gate = input.NewGate(cfg.Audio.GateThreshold)

	acfg := cfg.AnalysisConfig()
	acfg.SampleRate = src.SampleRate()
	acfg.Deferred = false
	an, err := analysis.NewAnalyzer(acfg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := src.Run(ctx, an); err != nil {
		return err
	}
	elapsed := time.Since(start)

	levels := an.Latest()
	stats := an.Stats()
	fmt.Fprintf(w, "File:      %s (%.0f Hz, %d channels, %s)\n",
		filepath.Base(path), src.SampleRate(), src.Channels(), src.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Windows:   %d analysed, %d published in %s\n",
		stats.Windows, stats.Published, elapsed.Round(time.Millisecond))
	if stats.Published == 0 {
		fmt.Fprintf(w, "Peak:      none (file shorter than one %d-sample window)\n", acfg.FFTSize())
		return nil
	}

	idx := floats.MaxIdx(levels)
	bin := an.Mapper().BinIndex(idx)
	fmt.Fprintf(w, "Peak:      level %d of %d = %.3f (bin %d, %.1f Hz)\n",
		idx, len(levels), levels[idx], bin, an.Engine().BinFrequency(bin, acfg.SampleRate))
	fmt.Fprintf(w, "Mean:      %.3f\n", floats.Sum(levels)/float64(len(levels)))
	return nil
}

// runLive analyses a live device or a real-time WAV file, feeding the
// display and every enabled transport until ctx is cancelled or the user
// quits.
func runLive(ctx context.Context, cfg *config.Config, opts *Options) error {
	var (
		wavSrc *input.WAVSource
		err    error
	)
	if opts.File != "" {
		wavSrc, err = input.OpenWAV(opts.File, cfg.Audio.FramesPerBuffer)
		if err != nil {
			return err
		}
		defer wavSrc.Close()
		wavSrc.Realtime = true
		wavSrc.Gate = input.NewGate(cfg.Audio.GateThreshold)
		cfg.Audio.SampleRate = wavSrc.SampleRate()
	} else {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()

		if opts.Pick {
			id, ok, err := tui.PickDevice()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			cfg.Audio.InputDevice = id
		}
	}

	an, err := analysis.NewAnalyzer(cfg.AnalysisConfig())
	if err != nil {
		return err
	}

	// Consumers take their taps before any audio flows.
	stopTransports, err := startTransports(cfg, an)
	if err != nil {
		return err
	}
	defer stopTransports()

	var ws *transport.WebSocketTransport
	if cfg.Transport.WebSocketEnabled {
		ws = transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		defer ws.Close()
		if err := ws.Start(); err != nil {
			return err
		}
	}

	if !opts.Headless {
		// The display owns the terminal; logs go to a file in debug mode.
		restore, err := redirectLogs(cfg.Debug)
		if err != nil {
			return err
		}
		defer restore()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return quiet(an.Run(ctx)) })

	if ws != nil {
		tap := an.Tap()
		g.Go(func() error { return quiet(transport.Pump(ctx, tap, ws, cfg.Transport.WebSocketInterval)) })
	}

	if opts.Headless {
		lt := transport.NewLoggingTransport()
		defer lt.Close()
		tap := an.Tap()
		interval := time.Second / time.Duration(cfg.Render.RefreshHz)
		g.Go(func() error { return quiet(transport.Pump(ctx, tap, lt, interval)) })
		g.Go(func() error { return logStatus(ctx, an) })
	}

	title := "Spectrometer"
	if wavSrc != nil {
		title = fmt.Sprintf("Spectrometer • %s", filepath.Base(opts.File))
		g.Go(func() error {
			err := wavSrc.Run(ctx, an)
			if err == nil && opts.Headless {
				applog.Infof("Main: %s finished", opts.File)
				cancel()
			}
			return quiet(err)
		})
	} else {
		engine, err := audio.NewEngine(cfg.Audio, an)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer engine.Close()

		// First callback marks the start of the real-time path.
		if err := engine.StartInputStream(); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
	}

	if opts.Headless {
		<-ctx.Done()
	} else {
		model := tui.NewSpectrumModel(an, title, cfg.Render.RefreshHz, cfg.Render.Smoothing)
		err := tui.RunSpectrum(ctx, model)
		cancel()
		if err != nil {
			_ = g.Wait()
			return err
		}
	}

	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	stats := an.Stats()
	applog.Infof("Main: %d windows, %d dropped, %d published", stats.Windows, stats.Dropped, stats.Published)
	return nil
}

// startTransports starts the UDP publisher when enabled and returns a
// function stopping it.
func startTransports(cfg *config.Config, an *analysis.Analyzer) (func(), error) {
	if !cfg.Transport.UDPEnabled {
		return func() {}, nil
	}

	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create UDP sender: %w", err)
	}
	publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, an.Tap())
	if err != nil {
		sender.Close()
		return nil, fmt.Errorf("failed to create UDP publisher: %w", err)
	}
	publisher.Start()

	return func() {
		if err := publisher.Stop(); err != nil {
			applog.Warnf("Main: Error stopping UDP publisher: %v", err)
		}
		if err := sender.Close(); err != nil {
			applog.Warnf("Main: Error closing UDP sender: %v", err)
		}
	}, nil
}

// logStatus reports the analyzer counters at debug level and warns when
// windows start being dropped.
func logStatus(ctx context.Context, an *analysis.Analyzer) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		stats := an.Stats()
		applog.Debugf("Main: windows %d, dropped %d, published %d", stats.Windows, stats.Dropped, stats.Published)
		if stats.Dropped > lastDropped {
			applog.Warnf("Main: %d windows dropped since last report", stats.Dropped-lastDropped)
			lastDropped = stats.Dropped
		}
	}
}

// logFile receives log output while the display is running in debug mode.
const logFile = "spectrometer.log"

// redirectLogs points the logger away from the terminal: to logFile when
// debug is set, otherwise nowhere. The returned function restores stderr.
func redirectLogs(debug bool) (func(), error) {
	if !debug {
		applog.SetOutput(io.Discard)
		return func() { applog.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}, nil
}

// quiet treats cancellation as a clean stop.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
