// Package log sets up the process logger: JSON lines written to rotating
// files under the job directory, to stdout, and optionally shipped to
// Elasticsearch.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/internetarchive/elogrus"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/olivere/elastic/v7"
	"github.com/sirupsen/logrus"
)

// DefaultRotation is how often log files are rotated
const DefaultRotation = 6 * time.Hour

// Options configures Setup
type Options struct {
	JobPath  string
	Level    string // logrus level name, info when empty
	Rotation time.Duration

	NoFile   bool
	NoStdout bool
	// Stdout defaults to os.Stdout
	Stdout io.Writer

	// ElasticSearchURLs is a comma separated list, no hook is added when empty
	ElasticSearchURLs        string
	ElasticSearchIndexPrefix string
}

// Logger is the process logger. Close flushes and closes the log file.
type Logger struct {
	*logrus.Logger

	file io.Closer
}

// Close closes the rotating log file, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Setup returns the logger for the crawl
func Setup(opts Options) (*Logger, error) {
	if opts.Rotation <= 0 {
		opts.Rotation = DefaultRotation
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.ElasticSearchIndexPrefix == "" {
		opts.ElasticSearchIndexPrefix = "frontier"
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	logger := &Logger{Logger: logrus.New()}
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)

	var writers []io.Writer

	if !opts.NoFile {
		logsDirectory := path.Join(opts.JobPath, "logs")
		if err := os.MkdirAll(logsDirectory, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create logs directory: %w", err)
		}

		writer, err := rotatelogs.New(
			fmt.Sprintf("%s_%s.log", path.Join(logsDirectory, "frontier"), "%Y%m%d%H%M%S"),
			rotatelogs.WithRotationTime(opts.Rotation),
		)
		if err != nil {
			return nil, fmt.Errorf("initialize log file: %w", err)
		}

		logger.file = writer
		writers = append(writers, writer)
	}

	if !opts.NoStdout {
		writers = append(writers, opts.Stdout)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	if opts.ElasticSearchURLs != "" {
		if err := addElasticHook(logger.Logger, opts, level); err != nil {
			logger.Close()
			return nil, err
		}
	}

	return logger, nil
}

func addElasticHook(logger *logrus.Logger, opts Options, level logrus.Level) error {
	hostname, err := os.Hostname()
	if err != nil {
		return err
	}

	client, err := elastic.NewClient(
		elastic.SetURL(strings.Split(opts.ElasticSearchURLs, ",")...),
		elastic.SetSniff(false),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch client: %w", err)
	}

	hook, err := elogrus.NewAsyncElasticHook(client, hostname, level, opts.ElasticSearchIndexPrefix+"-"+time.Now().Format("2006.01.02"))
	if err != nil {
		return fmt.Errorf("elasticsearch hook: %w", err)
	}

	logger.Hooks.Add(hook)

	return nil
}
