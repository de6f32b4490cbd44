// Package logging builds the zerolog logger shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Builder struct {
	writer    io.Writer
	path      string
	level     string
	maxSizeMB int
	pretty    bool
}

// Log is a built logger plus the rotating file behind it, if any.
type Log struct {
	Logger zerolog.Logger
	file   *lumberjack.Logger
}

func New() *Builder {
	return &Builder{level: "info", maxSizeMB: 50}
}

// FromPath writes to a size-rotated file instead of the buffer.
func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

func (b *Builder) FromBuffer(w io.Writer) *Builder {
	b.writer = w
	return b
}

func (b *Builder) Level(level string) *Builder {
	b.level = level
	return b
}

func (b *Builder) MaxSize(mb int) *Builder {
	if mb > 0 {
		b.maxSizeMB = mb
	}
	return b
}

// Pretty switches to the human-readable console format.
func (b *Builder) Pretty(on bool) *Builder {
	b.pretty = on
	return b
}

func (b *Builder) Make() (*Log, error) {
	level, err := zerolog.ParseLevel(b.level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", b.level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := &Log{}
	writer := b.writer
	if writer == nil {
		writer = os.Stdout
	}
	if b.path != "" {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		out.file = &lumberjack.Logger{
			Filename:   b.path,
			MaxSize:    b.maxSizeMB,
			MaxBackups: 3,
			Compress:   true,
		}
		writer = zerolog.SyncWriter(out.file)
	} else if b.pretty {
		writer = zerolog.ConsoleWriter{Out: writer}
	}
	out.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return out, nil
}

func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
