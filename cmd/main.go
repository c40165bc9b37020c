package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/inconshreveable/log15"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	"golang.org/x/sync/errgroup"

	fsrpad "github.com/iqe/fsrpad/internal"
)

var (
	version = "undefined" // updated during release build
)

func main() {
	device := flag.String("d", "/dev/video0", "Video device to use")
	configDir := flag.String("c", ".", "Directory for config.yaml")
	apiAddr := flag.String("l", "0.0.0.0:8080", "Host:port for HTTP API")
	midiPort := flag.String("m", "", "MIDI output port, overrides config.yaml")
	verbose := flag.Bool("v", false, "Print more verbose messages")
	versionFlag := flag.Bool("V", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fsrpad - version %s\n", version)
		os.Exit(0)
	}

	logLevel := log.LvlInfo
	if *verbose {
		logLevel = log.LvlDebug
	}
	log.Root().SetHandler(log.LvlFilterHandler(logLevel, log.StdoutHandler))

	fsrpad.ConfigDir = *configDir
	settings, err := fsrpad.LoadSettings()
	if err != nil {
		log.Crit("Failed to load settings", "error", err)
		os.Exit(1)
	}
	if *midiPort != "" {
		settings.Midi.Enabled = true
		settings.Midi.Port = *midiPort
	}

	if err := run(settings, *device, *apiAddr, *verbose); err != nil {
		log.Crit("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(settings fsrpad.Settings, device, apiAddr string, verbose bool) error {
	interval, err := settings.Interval()
	if err != nil {
		return err
	}

	handlers := fsrpad.Handlers{fsrpad.NewMetricsHandler(settings.Pad.NSteps)}

	if settings.Midi.Enabled {
		defer gomidi.CloseDriver()
		midi, err := fsrpad.OpenMidi(settings.Midi, settings.Pad.NSteps)
		if err != nil {
			return err
		}
		handlers = append(handlers, midi)
	}

	var mqtt *fsrpad.MqttHandler
	if settings.Mqtt.Enabled {
		mqtt = fsrpad.NewMqttHandler(settings.Mqtt)
		handlers = append(handlers, mqtt)
	}

	source := fsrpad.NewWebcamSource(device, settings.Capture)

	pad, err := fsrpad.New(&settings.Pad, fsrpad.NewMonotonicClock(), source, handlers)
	if err != nil {
		return err
	}
	pad.SetLogger(log.New("module", "pad", "device", device))

	sampler := fsrpad.NewSampler(pad, interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if mqtt != nil {
		g.Go(func() error { return mqtt.Run(ctx) })
	}
	g.Go(func() error { return source.Run(ctx) })
	g.Go(func() error { return sampler.Run(ctx) })
	g.Go(func() error { return fsrpad.RunApi(ctx, apiAddr, verbose, sampler) })

	return g.Wait()
}
