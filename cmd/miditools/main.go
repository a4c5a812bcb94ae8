package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-midiplay/audio"
	"go-midiplay/midi"
	"go-midiplay/midifile"
	"go-midiplay/player"
	"go-midiplay/sequence"
	"go-midiplay/synth"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "ports":
		err = listPorts()
	case "dump":
		err = dump(os.Args[2:])
	case "render":
		err = render(os.Args[2:])
	case "watch":
		err = watch(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  ports                         - List all MIDI ports")
	fmt.Println("  dump <file.mid>               - Print a file's tracks as the player sees them")
	fmt.Println("  render -sf <sf2> -o <wav> <f> - Render a file to WAV offline")
	fmt.Println("  watch <port>                  - Report an output port connecting/disconnecting")
}

func listPorts() error {
	fmt.Println("(waiting up to 3 seconds...)")
	ports, err := midi.ListPorts(3 * time.Second)
	if err != nil {
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ports.In {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range ports.Out {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

func dump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	limit := fs.Int("n", 0, "events per track to print (0 = all)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("dump: need exactly one file")
	}

	seq, err := midifile.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("resolution: %d ppqn\n", seq.Resolution())
	fmt.Printf("tempo:      %.2f bpm\n", seq.BaseTempo())
	fmt.Printf("max tick:   %d (%.2fs at file tempo)\n", seq.MaxTick(), seq.Duration(seq.BaseTempo()))
	fmt.Printf("events:     %d in %d tracks\n", seq.Len(), seq.NumTracks())

	for i, tr := range seq.Tracks() {
		fmt.Printf("\n=== Track %d (%d events) ===\n", i, len(tr))
		printTrack(tr, *limit)
	}
	return nil
}

func printTrack(tr sequence.Track, limit int) {
	for j, ev := range tr {
		if limit > 0 && j >= limit {
			fmt.Printf("  ... %d more\n", len(tr)-limit)
			return
		}
		fmt.Printf("  %8d  %s\n", ev.Tick, ev.Message)
	}
}

func render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	sfPath := fs.String("sf", "", "SoundFont (.sf2)")
	outPath := fs.String("o", "out.wav", "output WAV file")
	rate := fs.Int("rate", 48000, "sample rate")
	host := fs.Float64("tempo", 0, "render at this host tempo instead of the file's")
	tail := fs.Duration("tail", 2*time.Second, "render this long after the last tick")
	limit := fs.Duration("limit", 10*time.Minute, "maximum length")
	drift := fs.Bool("drift-fix", false, "carry fractional ticks across blocks")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("render: need exactly one file")
	}

	sf, err := synth.LoadSoundFont(*sfPath)
	if err != nil {
		return err
	}
	syn, err := synth.New(sf, *rate)
	if err != nil {
		return err
	}

	opts := player.Options{SampleRate: *rate, Renderer: syn, CompensateDrift: *drift}
	if *host > 0 {
		opts.Clock = player.NewManualClock(*host)
	}
	p := player.New(opts)
	p.SetSyncToHost(*host > 0)
	if err := p.Load(fs.Arg(0)); err != nil {
		return err
	}

	start := time.Now()
	samples := p.Render(player.RenderOptions{Tail: *tail, Limit: *limit})
	if len(samples) == 0 {
		return fmt.Errorf("%s: nothing to render", fs.Arg(0))
	}
	if err := audio.WriteWAVFile(*outPath, samples, *rate); err != nil {
		return err
	}
	seconds := float64(len(samples)/2) / float64(*rate)
	fmt.Printf("wrote %s: %.2fs of audio in %s\n", *outPath, seconds, time.Since(start).Round(time.Millisecond))
	return nil
}

func watch(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("watch: need a port name")
	}
	fmt.Printf("Watching for %q. Ctrl+C to exit.\n", args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := midi.NewWatcher(args[0], midi.NewOutputs())
	go w.Run(ctx)
	for ev := range w.Events() {
		fmt.Printf("[%s] %s %s\n", time.Now().Format("15:04:05"), ev.Name, ev.Type)
	}
	return nil
}
