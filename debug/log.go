package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	level   = charmlog.InfoLevel
	logger  = newLogger(io.Discard)
)

func newLogger(w io.Writer) *charmlog.Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          "midiplay",
	})
	l.SetLevel(level)
	return l
}

// Enable starts logging to path, truncating it
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enable(f)
	return nil
}

// EnableWriter logs to w instead of a file
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	enable(w)
}

// caller holds mu
func enable(w io.Writer) {
	enabled = true
	logger = newLogger(w)
	logger.Info("debug logging started", "at", time.Now().Format(time.DateTime))
}

func closeFile() {
	if file != nil {
		file.Sync()
		file.Close()
		file = nil
	}
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	enabled = false
	logger = newLogger(io.Discard)
}

// Enabled reports whether a log destination is set
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger returns the current logger. It discards output until Enable.
func Logger() *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetLevel parses a level name (debug, info, warn, error)
func SetLevel(name string) error {
	lvl, err := charmlog.ParseLevel(name)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	logger.SetLevel(lvl)
	return nil
}

// Log writes a debug-level message tagged with category
func Log(category, format string, args ...any) {
	l := Logger()
	l.Debug(fmt.Sprintf(format, args...), "cat", category)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	if n <= 0 {
		n = 1
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
