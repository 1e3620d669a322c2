package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config selects the outputs of a Service. With no output enabled the
// Service falls back to the console.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Alert   AlertConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// AlertConfig controls forwarding of high-severity lines to an AlertSink.
type AlertConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

const defaultLogPath = "./cronhost.log"

// Service owns the process log outputs and swaps them on Apply. Loggers
// taken from it pick up the new outputs on their next line.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu     sync.Mutex
	file   *os.File
	alerts *alerter
}

// New applies cfg and returns the Service with its root Logger. A nil sink
// keeps alert forwarding off whatever cfg says.
func New(cfg Config, sink AlertSink) (*Service, Logger) {
	s := &Service{}
	if sink != nil {
		s.alerts = newAlerter(sink)
	}
	s.Apply(cfg)
	return s, Logger{src: s.current}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply swaps outputs and levels. It is safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		if w := s.openFile(cfg.File.Path); w != nil {
			writers = append(writers, w)
		}
	}
	if s.alerts != nil {
		s.alerts.configure(cfg.Alert)
		if cfg.Alert.Enabled {
			writers = append(writers, alertWriter{s.alerts})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(os.Stdout))
	}

	zl := build(zerolog.MultiLevelWriter(writers...), cfg.Level)
	s.root.Store(&zl)
}

// openFile reports a failure on stderr since no logger is usable yet.
func (s *Service) openFile(path string) io.Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: open log file %q: %v\n", path, err)
		return nil
	}
	s.file = f
	return zerolog.SyncWriter(f)
}

// Close stops alert delivery and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()

	if s.alerts != nil {
		s.alerts.stop()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}
