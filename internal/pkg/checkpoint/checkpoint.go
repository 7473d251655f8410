// Package checkpoint writes the frontier state in a series of numbered
// directories and recovers from the newest valid one.
package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/internetarchive/frontier/internal/pkg/control"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	// DefaultPrefix starts the name of every checkpoint
	DefaultPrefix = "cp"

	// StateFile holds the frontier snapshot
	StateFile = "frontier.gob"
	// MetaFile describes the checkpoint
	MetaFile = "meta.json"
	// ValidFile is written last, a checkpoint without it is ignored
	ValidFile = "valid"

	markerLayout = "20060102150405"
)

// Snapshotter is the state saved in a checkpoint
type Snapshotter interface {
	Snapshot(w io.Writer) error
	Restore(r io.Reader) error
}

// Options configures a Checkpointer
type Options struct {
	// Dir holds one sub-directory per checkpoint
	Dir string
	// Prefix starts checkpoint names, DefaultPrefix when empty
	Prefix string
	// Fs defaults to the OS filesystem
	Fs     afero.Fs
	Logger logrus.FieldLogger
}

// Meta describes a checkpoint
type Meta struct {
	Name     string    `json:"name"`
	Sequence int       `json:"sequence"`
	Next     int       `json:"next"`
	Prefix   string    `json:"prefix"`
	Lineage  string    `json:"lineage"`
	Created  time.Time `json:"created"`
	Valid    bool      `json:"-"`
}

// Checkpointer names and writes checkpoints. Names are the prefix followed
// by a five digits sequence number that only grows within a crawl lineage.
type Checkpointer struct {
	dir  string
	fs   afero.Fs
	gate *control.Gate
	log  logrus.FieldLogger

	mu      sync.Mutex
	next    int
	prefix  string
	lineage string

	// nowFunc is the function used to get the current time.
	// it defaults to time.Now, but can be overridden for testing
	nowFunc func() time.Time
}

// New returns a Checkpointer starting a new lineage. gate is paused while a
// checkpoint is written, it may be nil.
func New(opts Options, gate *control.Gate) *Checkpointer {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Checkpointer{
		dir:     opts.Dir,
		fs:      opts.Fs,
		gate:    gate,
		log:     opts.Logger,
		next:    1,
		prefix:  opts.Prefix,
		lineage: uuid.New().String(),
		nowFunc: time.Now,
	}
}

// Name returns the name the next checkpoint would get
func (c *Checkpointer) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nameLocked()
}

func (c *Checkpointer) nameLocked() string {
	return fmt.Sprintf("%s%05d", c.prefix, c.next)
}

// Lineage returns the identifier shared by the checkpoints of this crawl
func (c *Checkpointer) Lineage() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lineage
}

// Checkpoint writes s in a new checkpoint directory. The sequence number is
// consumed even when writing fails, and a failed checkpoint never carries a
// validity marker. The failure is logged and returned, it is not meant to
// stop the crawl.
func (c *Checkpointer) Checkpoint(s Snapshotter) (Meta, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gate != nil && c.gate.Pause() {
		defer c.gate.Resume()
	}

	// Never overwrite a checkpoint left by an earlier run of this lineage
	for {
		exists, err := afero.DirExists(c.fs, path.Join(c.dir, c.nameLocked()))
		if err != nil || !exists {
			break
		}
		c.next++
	}

	meta := Meta{
		Name:     c.nameLocked(),
		Sequence: c.next,
		Next:     c.next + 1,
		Prefix:   c.prefix,
		Lineage:  c.lineage,
		Created:  c.nowFunc().UTC(),
	}
	c.next++

	start := time.Now()
	if err := c.write(meta, s); err != nil {
		if rmErr := c.fs.Remove(path.Join(c.dir, meta.Name, ValidFile)); rmErr != nil && !isNotExist(rmErr) {
			c.log.WithFields(logrus.Fields{
				"checkpoint": meta.Name,
				"error":      rmErr,
			}).Error("Unable to remove validity marker of failed checkpoint")
		}

		c.log.WithFields(logrus.Fields{
			"checkpoint": meta.Name,
			"error":      err,
		}).Warn("Checkpoint failed, crawl continues")

		return meta, err
	}

	meta.Valid = true

	c.log.WithFields(logrus.Fields{
		"checkpoint": meta.Name,
		"duration":   time.Since(start).String(),
	}).Info("Checkpoint written")

	return meta, nil
}

func (c *Checkpointer) write(meta Meta, s Snapshotter) error {
	dir := path.Join(c.dir, meta.Name)
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	if err := c.writeFile(path.Join(dir, StateFile), s.Snapshot); err != nil {
		return fmt.Errorf("write frontier state: %w", err)
	}

	if err := c.writeFile(path.Join(dir, MetaFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return fmt.Errorf("write checkpoint meta: %w", err)
	}

	if err := c.writeFile(path.Join(dir, ValidFile), func(w io.Writer) error {
		_, err := io.WriteString(w, meta.Created.Format(markerLayout)+"\n")
		return err
	}); err != nil {
		return fmt.Errorf("write validity marker: %w", err)
	}

	return nil
}

func (c *Checkpointer) writeFile(name string, fill func(w io.Writer) error) error {
	file, err := c.fs.Create(name)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	if err := fill(w); err != nil {
		file.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// List returns every checkpoint found in the directory, oldest first.
// Checkpoints without validity marker are listed with Valid false.
func (c *Checkpointer) List() ([]Meta, error) {
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var metas []Meta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := c.readMeta(entry.Name())
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"checkpoint": entry.Name(),
				"error":      err,
			}).Debug("Skipping unreadable checkpoint")
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].Created.Equal(metas[j].Created) {
			return metas[i].Created.Before(metas[j].Created)
		}
		return metas[i].Name < metas[j].Name
	})

	return metas, nil
}

func (c *Checkpointer) readMeta(name string) (Meta, error) {
	var meta Meta

	data, err := afero.ReadFile(c.fs, path.Join(c.dir, name, MetaFile))
	if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}

	marker, err := afero.ReadFile(c.fs, path.Join(c.dir, name, ValidFile))
	if err == nil {
		_, parseErr := time.Parse(markerLayout, strings.TrimSpace(string(marker)))
		meta.Valid = parseErr == nil
	}

	return meta, nil
}

// Latest returns the newest valid checkpoint
func (c *Checkpointer) Latest() (Meta, error) {
	metas, err := c.List()
	if err != nil {
		return Meta{}, err
	}

	for i := len(metas) - 1; i >= 0; i-- {
		if metas[i].Valid {
			return metas[i], nil
		}
	}

	return Meta{}, ErrNoValidCheckpoint
}

// Recover restores s from the checkpoint name and continues its lineage.
// The following checkpoints are prefixed with an extra "r" so they never
// collide with the ones the recovered crawl wrote after name.
func (c *Checkpointer) Recover(name string, s Snapshotter) (Meta, error) {
	meta, err := c.readMeta(name)
	if err != nil {
		return meta, fmt.Errorf("%w: %s: %w", ErrInvalidCheckpoint, name, err)
	}
	if !meta.Valid {
		return meta, fmt.Errorf("%w: %s has no validity marker", ErrInvalidCheckpoint, name)
	}

	file, err := c.fs.Open(path.Join(c.dir, name, StateFile))
	if err != nil {
		return meta, fmt.Errorf("open frontier state: %w", err)
	}
	defer file.Close()

	if err := s.Restore(bufio.NewReader(file)); err != nil {
		return meta, fmt.Errorf("restore %s: %w", name, err)
	}

	c.mu.Lock()
	c.next = meta.Sequence + 1
	c.prefix = "r" + meta.Prefix
	if meta.Lineage != "" {
		c.lineage = meta.Lineage
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"checkpoint": name,
		"next":       c.Name(),
	}).Info("Recovered from checkpoint")

	return meta, nil
}

// Run writes a checkpoint every interval until ctx is done. Failed
// checkpoints are only logged.
func (c *Checkpointer) Run(ctx context.Context, interval time.Duration, s Snapshotter) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Checkpoint(s)
		}
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
