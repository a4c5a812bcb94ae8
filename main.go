package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-midiplay/audio"
	"go-midiplay/config"
	"go-midiplay/debug"
	"go-midiplay/midi"
	"go-midiplay/player"
	"go-midiplay/settings"
	"go-midiplay/synth"
	"go-midiplay/theme"
	"go-midiplay/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	var (
		port         = flag.String("port", cfg.Output.PortName, "MIDI output port name")
		soundFont    = flag.String("sf", cfg.Audio.SoundFont, "SoundFont (.sf2) for the built-in synth")
		sampleRate   = flag.Int("rate", cfg.Audio.SampleRate, "audio sample rate")
		buffer       = flag.Duration("buffer", 20*time.Millisecond, "audio device buffer")
		hostTempo    = flag.Float64("tempo", cfg.Transport.HostTempo, "initial host clock BPM")
		drift        = flag.Bool("drift-fix", cfg.Transport.CompensateDrift, "carry fractional ticks across blocks")
		settingsPath = flag.String("settings", cfg.SettingsPath, "settings file (.json, .yaml)")
		palettePath  = flag.String("palette", cfg.UI.Palette, "GIMP palette (.gpl)")
		logPath      = flag.String("log", cfg.Log.Path, "debug log file")
		logLevel     = flag.String("log-level", cfg.Log.Level, "debug|info|warn|error")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: go-midiplay [flags] [file.mid]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg.Output.PortName = *port
	cfg.Audio.SoundFont = *soundFont
	cfg.Audio.SampleRate = *sampleRate
	cfg.Transport.HostTempo = *hostTempo
	cfg.Transport.CompensateDrift = *drift
	cfg.SettingsPath = *settingsPath
	cfg.UI.Palette = *palettePath
	cfg.Log.Path = *logPath
	cfg.Log.Level = *logLevel

	if err := run(cfg, flag.Arg(0), *buffer); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, file string, buffer time.Duration) error {
	if path, err := cfg.LogFile(); err == nil {
		if err := debug.Enable(path); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
	}
	defer debug.Disable()
	if err := debug.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	log := debug.Logger()

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		log.Warn("palette", "err", err)
		palette = theme.DefaultPalette()
	}
	th := theme.New(palette)

	settingsPath, err := cfg.SettingsFile()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := player.Options{
		SampleRate:      cfg.Audio.SampleRate,
		Store:           settings.NewStore(settingsPath),
		CompensateDrift: cfg.Transport.CompensateDrift,
	}

	clock := player.NewManualClock(cfg.Transport.HostTempo)
	opts.Clock = clock

	if sf, err := synth.LoadSoundFont(cfg.Audio.SoundFont); err == nil {
		syn, err := synth.New(sf, cfg.Audio.SampleRate)
		if err != nil {
			return err
		}
		opts.Renderer = syn
	} else {
		log.Warn("built-in synth disabled", "err", err)
	}

	// MIDI output with hot-plug: the sender is looked up per message so a
	// reconnected port is reopened
	var watcher *midi.Watcher
	if name := cfg.Output.PortName; name != "" {
		outputs := midi.NewOutputs()
		sink := midi.NewPortSink(func(msg gomidi.Message) error {
			send, err := outputs.Sender(name)
			if err != nil {
				return err
			}
			return send(msg)
		}, 0)
		go sink.Run(ctx)
		opts.Sinks = append(opts.Sinks, sink)

		watcher = midi.NewWatcher(name, outputs)
		go watcher.Run(ctx)
	}

	p := player.New(opts)
	if err := p.LoadSettings(); err != nil {
		log.Warn("settings", "path", settingsPath, "err", err)
	}
	if file != "" {
		if err := p.Load(file); err != nil {
			return err
		}
	}

	out, err := audio.NewPlayer(cfg.Audio.SampleRate, buffer, p)
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer out.Close()
	out.Play()

	m := tui.NewModel(p, clock, watcher, th)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}
