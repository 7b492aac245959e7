package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Console formats.
const (
	FormatAuto   = ""       // pretty on a terminal, JSON otherwise
	FormatPretty = "pretty" // zerolog console writer
	FormatJSON   = "json"
)

type Config struct {
	Level   string
	Console bool
	// Format applies to the console sink only.
	Format string
	File   FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultFilePath = "./recurd.log"

// Service owns the sinks. Loggers obtained from it pick up Apply changes.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File

	root atomic.Pointer[zerolog.Logger]
}

// New applies cfg and returns the service with its root Logger.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() *zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return zl
	}
	return &nopRoot
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Config returns the last applied config.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Apply rebuilds the sinks. Safe for concurrent use with logging.
// With no sink enabled, output falls back to the console.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, consoleWriter(cfg.Format))
	}

	var file *os.File
	if cfg.File.Enabled {
		f, err := openLogFile(cfg.File.Path)
		if err != nil {
			// The logger is what is being built; stderr is all we have.
			fmt.Fprintf(os.Stderr, "logx: %v\n", err)
		} else {
			file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}
	if len(writers) == 0 {
		writers = append(writers, consoleWriter(cfg.Format))
	}

	zl := newRoot(ParseLevel(cfg.Level, LevelInfo), zerolog.MultiLevelWriter(writers...))
	s.root.Store(&zl)

	// Swap before closing so no record hits a closed file.
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = file
}

func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f != nil {
		return f.Close()
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir for %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}

func consoleWriter(format string) io.Writer {
	pretty := false
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPretty:
		pretty = true
	case FormatJSON:
	default:
		pretty = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
	if !pretty {
		return os.Stdout
	}
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	// Caller is already short (file:line).
	cw.FormatCaller = func(i any) string {
		s, _ := i.(string)
		return s
	}
	return cw
}
