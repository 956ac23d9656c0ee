// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"spectrometer/internal/config"
	"spectrometer/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected by ParseArgs.
const (
	CommandLive    = ""
	CommandList    = "list"
	CommandAnalyze = "analyze"
)

// Options holds everything the command line decided. Flags that mirror a
// config setting only override it when given explicitly.
type Options struct {
	Command    string
	ConfigPath string
	File       string // WAV input instead of a live device.
	Headless   bool   // No display; log levels instead.
	Pick       bool   // Choose the input device interactively.
	Verbose    bool

	DeviceID   int
	deviceSet  bool
	UDP        bool
	udpSet     bool
	WebSocket  bool
	wsSet      bool
	Window     string
	windowSet  bool
	Deferred   bool
	deferSet   bool
	RefreshHz  int
	refreshSet bool
}

// Apply writes the explicitly given flags over cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.deviceSet {
		cfg.Audio.InputDevice = o.DeviceID
	}
	if o.udpSet {
		cfg.Transport.UDPEnabled = o.UDP
	}
	if o.wsSet {
		cfg.Transport.WebSocketEnabled = o.WebSocket
	}
	if o.windowSet {
		cfg.Spectrum.Window = o.Window
	}
	if o.deferSet {
		cfg.Spectrum.Deferred = o.Deferred
	}
	if o.refreshSet {
		cfg.Render.RefreshHz = o.RefreshHz
	}
	if o.Verbose {
		cfg.Debug = true
	}
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandLive
			if options.Pick && options.File != "" {
				return fmt.Errorf("--pick and --file are mutually exclusive")
			}
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio input devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	}
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Analyse a WAV file offline and report the final spectrum peak",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandAnalyze
			options.File = args[0]
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	flags := rootCmd.PersistentFlags()

	// Configuration
	flags.StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML config file. Defaults to ./config.yaml or ./spectrometer.yaml when present")

	// Input
	flags.IntVarP(&options.DeviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.BoolVarP(&options.Pick, "pick", "p", false,
		"Choose the input device from an interactive list")
	rootCmd.Flags().StringVarP(&options.File, "file", "f", "",
		"Analyse a WAV file in real time instead of a live device")

	// Analysis and output
	flags.StringVarP(&options.Window, "window", "w", "",
		"Window function: hamming, hann, bartletthann, blackman, blackmannuttall, lanczos, nuttall")
	flags.BoolVar(&options.Deferred, "deferred", false,
		"Run the transform on a worker goroutine instead of the audio thread")
	flags.IntVar(&options.RefreshHz, "refresh", config.DefaultRefreshHz,
		"Display refresh rate in Hz")
	flags.BoolVar(&options.Headless, "headless", false,
		"Run without the terminal display")
	flags.BoolVar(&options.UDP, "udp", false,
		"Publish levels over UDP")
	flags.BoolVar(&options.WebSocket, "ws", false,
		"Serve levels over WebSocket")

	// Debug Configuration
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	executed, err := rootCmd.ExecuteC()
	if err != nil {
		return nil, err
	}
	// --help and --version run no command.
	if help, _ := executed.Flags().GetBool("help"); help {
		return nil, nil
	}
	if version, _ := rootCmd.Flags().GetBool("version"); version {
		return nil, nil
	}

	options.deviceSet = flags.Changed("device")
	options.udpSet = flags.Changed("udp")
	options.wsSet = flags.Changed("ws")
	options.windowSet = flags.Changed("window")
	options.deferSet = flags.Changed("deferred")
	options.refreshSet = flags.Changed("refresh")

	return options, nil
}
