// Package journal keeps an append-only log of the frontier events, one line
// per event, and replays it to rebuild a frontier after a crash.
package journal

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/internetarchive/frontier/pkg/models"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// Event codes starting each journal line
const (
	Added       = "F+"
	Emitted     = "Fe"
	Rescheduled = "Fr"
	Success     = "Fs"
	Failure     = "Ff"
	Disregarded = "Fd"
)

// Extension of the journal files
const Extension = ".journal"

// empty stands for a missing field
const empty = "-"

// Journal writes frontier events. It is safe for concurrent use.
type Journal struct {
	logger *logrus.Logger
	closer io.Closer
}

// Open starts a journal in dir, rotated every rotation (6h when zero)
func Open(dir string, rotation time.Duration) (*Journal, error) {
	if rotation <= 0 {
		rotation = 6 * time.Hour
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	writer, err := rotatelogs.New(
		path.Join(dir, "frontier_%Y%m%d%H%M%S"+Extension),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := New(writer)
	j.closer = writer

	return j, nil
}

// New returns a journal writing to w
func New(w io.Writer) *Journal {
	logger := logrus.New()
	logger.SetFormatter(&lineFormatter{})
	logger.SetOutput(w)
	logger.SetLevel(logrus.InfoLevel)

	return &Journal{logger: logger}
}

func (j *Journal) write(code string, r *models.Record) {
	j.logger.WithFields(logrus.Fields{
		"code": code,
		"uri":  r.URL,
		"hop":  r.HopPath,
		"via":  r.Via,
	}).Info()
}

// Added journals a scheduled record
func (j *Journal) Added(r *models.Record) { j.write(Added, r) }

// Emitted journals a record handed to a worker
func (j *Journal) Emitted(r *models.Record) { j.write(Emitted, r) }

// Rescheduled journals a record put back in its queue for a retry
func (j *Journal) Rescheduled(r *models.Record) { j.write(Rescheduled, r) }

// Finished journals the final outcome of a record
func (j *Journal) Finished(r *models.Record, outcome models.Outcome) {
	switch outcome {
	case models.OutcomeSuccess:
		j.write(Success, r)
	case models.OutcomeDisregarded:
		j.write(Disregarded, r)
	default:
		j.write(Failure, r)
	}
}

// Close closes the underlying file, if any
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// lineFormatter renders "code uri hop via"
type lineFormatter struct{}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	b.WriteString(field(entry.Data["code"]))
	b.WriteByte(' ')
	b.WriteString(field(entry.Data["uri"]))
	b.WriteByte(' ')
	b.WriteString(field(entry.Data["hop"]))
	b.WriteByte(' ')
	b.WriteString(field(entry.Data["via"]))
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

func field(v interface{}) string {
	s, _ := v.(string)
	if s == "" {
		return empty
	}
	return s
}
