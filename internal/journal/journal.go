// SPDX-License-Identifier: Apache-2.0

// Package journal keeps a durable, append-only record of startup decisions such as the bootstrap
// outcome and schema migrations. Records are JSON lines written to a rolling file so that a
// degraded start can be diagnosed after the fact.
package journal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Kinds of journal entries.
const (
	KindBootstrap = "bootstrap"
	KindMigration = "migration"
	KindStore     = "store"
)

// Entry is a single diagnosis record.
type Entry struct {
	Kind    string
	Outcome string
	Reason  string
	TraceID string
	Err     error
	Fields  map[string]string
}

// Journal records diagnosis entries. Implementations must be safe for concurrent use and must not
// fail the caller: a record that cannot be written is dropped.
type Journal interface {
	Record(e Entry)
}

// Config holds the rolling file settings of the journal.
type Config struct {
	Directory  string `yaml:"directory" json:"directory"`
	Filename   string `yaml:"filename" json:"filename"`
	MaxSize    int    `yaml:"maxSize" json:"maxSize"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	MaxAge     int    `yaml:"maxAge" json:"maxAge"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// FileJournal writes entries as JSON lines.
type FileJournal struct {
	out    io.Writer
	logger zerolog.Logger
	now    func() time.Time
}

type nopJournal struct{}

func (nopJournal) Record(Entry) {}

// Nop returns a journal that discards every entry.
func Nop() Journal {
	return nopJournal{}
}

// New opens a rolling journal file in cfg.Directory.
func New(cfg Config) (*FileJournal, error) {
	if cfg.Filename == "" {
		return nil, errorx.IllegalArgument.New("journal filename cannot be empty")
	}

	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return nil, errorx.ExternalError.Wrap(err, "failed to create journal directory %q", cfg.Directory)
		}
	}

	return NewWriter(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, cfg.Filename),
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxBackups: cfg.MaxBackups, // files
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}), nil
}

// NewWriter creates a journal over an arbitrary writer.
func NewWriter(w io.Writer) *FileJournal {
	return &FileJournal{
		out:    w,
		logger: zerolog.New(w).With().Int("pid", os.Getpid()).Logger(),
		now:    time.Now,
	}
}

// Record appends the entry to the journal.
func (j *FileJournal) Record(e Entry) {
	ev := j.logger.Log().
		Str("id", uuid.NewString()).
		Time("time", j.now().UTC()).
		Str("kind", e.Kind).
		Str("outcome", e.Outcome)

	if e.Reason != "" {
		ev = ev.Str("reason", e.Reason)
	}

	if e.TraceID != "" {
		ev = ev.Str("traceId", e.TraceID)
	}

	if e.Err != nil {
		ev = ev.Str("error", e.Err.Error()).Str("errorType", errorx.GetTypeName(e.Err))
	}

	if len(e.Fields) > 0 {
		ev = ev.Interface("fields", e.Fields)
	}

	ev.Send()
}

// Close closes the underlying file, if any.
func (j *FileJournal) Close() error {
	if c, ok := j.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type traceKey struct{}

// WithTraceID returns a context carrying the trace id of the current run.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
