// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"spectrometer/cmd"
	applog "spectrometer/internal/log"
	"spectrometer/pkg/build"
	"syscall"
)

// main runs in three phases:
//
// 1. Startup (cold path): build information, command line, configuration.
// 2. Running (hot path): the audio callback feeds the analyzer while the
//    display and transports read the latest levels.
// 3. Shutdown (cold path): a signal or the user quitting cancels the context;
//    the stream stops first, then the consumers.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if opts == nil {
		// --help or --version
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, opts); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
