// main.go - Entry point for the videocomposer show-control compositor

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

const versionString = "videocomposer 1.0.0"

func boilerPlate() {
	fmt.Println("videocomposer - timecode-locked multi-output video compositor")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/intuitionamiga/videocomposer")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	flags := flag.NewFlagSet("videocomposer", flag.ContinueOnError)
	configPath := flags.String("config", DefaultConfigPath(), "display configuration file")
	card := flags.String("card", "", "DRM card node override (/dev/dri/cardN)")
	midiDevice := flags.String("midi", "", "raw MIDI device for MTC (/dev/snd/midiCnDn)")
	modePolicy := flags.String("mode", "native", "mode policy: native|maximum|720p|1080p|4k|custom")
	headless := flags.Bool("headless", false, "run without any presentation backend")
	window := flags.Bool("window", false, "render into a debug window instead of DRM/KMS")
	noIndex := flags.Bool("no-index", false, "linear seeking only (the frame index is still built)")
	forceSoftware := flags.Bool("force-software", false, "disable the VA-API decode probe")
	noAtomic := flags.Bool("no-atomic", false, "force legacy per-surface page flips")
	captureFile := flags.String("capture", "", "write raw canvas frames to this file")
	send := flags.Bool("send", false, "forward the remaining arguments as one command to a running instance")
	version := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(EXIT_OK)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(EXIT_INIT_FAILURE)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(EXIT_OK)
	}

	if *send {
		rest := flags.Args()
		if len(rest) == 0 {
			fmt.Fprintf(os.Stderr, "--send needs a command path\n")
			os.Exit(EXIT_INIT_FAILURE)
		}
		if err := SendControlCommand(rest[0], rest[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			os.Exit(EXIT_INIT_FAILURE)
		}
		os.Exit(EXIT_OK)
	}

	boilerPlate()

	opts := AppOptions{
		ConfigPath:    *configPath,
		Card:          *card,
		MIDIDevice:    *midiDevice,
		ModePolicy:    ParseModePolicy(*modePolicy),
		Headless:      *headless,
		DebugWindow:   *window || os.Getenv(ENV_NO_VIRTUAL_CANVAS) == "1",
		NoIndex:       *noIndex,
		ForceSoftware: *forceSoftware,
		ForceNoAtomic: *noAtomic,
		CaptureFile:   *captureFile,
	}

	app := NewVideoComposer(opts)
	if err := app.Init(); err != nil {
		// One specific line naming the subsystem and the underlying
		// error, spec 7.
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		app.Shutdown()
		os.Exit(EXIT_INIT_FAILURE)
	}

	app.Run()
	app.Shutdown()
	os.Exit(EXIT_OK)
}
