// Package watchers pauses the frontier when the resources it needs run low.
package watchers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const GB = 1024 * 1024 * 1024

// Pauser is the pause control of a frontier
type Pauser interface {
	Pause()
	Resume()
	IsPaused() bool
}

// DiskOptions configures a DiskWatcher
type DiskOptions struct {
	// Path is a path on the watched filesystem, usually the job directory
	Path string
	// MinSpaceRequired is the free space in GB under which the frontier is
	// paused. When 0 the threshold depends on the size of the filesystem.
	MinSpaceRequired float64
	// Interval between two checks while the space is sufficient
	Interval time.Duration
	Logger   logrus.FieldLogger
}

// DiskWatcher pauses the frontier while the free disk space is low and
// resumes it once there is enough space again. A pause it did not cause is
// never lifted.
type DiskWatcher struct {
	opts  DiskOptions
	p     Pauser
	log   logrus.FieldLogger
	check func(path string, minSpaceRequired float64) error
}

func NewDiskWatcher(opts DiskOptions, p Pauser) *DiskWatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	w := &DiskWatcher{
		opts:  opts,
		p:     p,
		log:   opts.Logger,
		check: CheckDiskUsage,
	}
	if w.log == nil {
		w.log = logrus.StandardLogger()
	}
	w.log = w.log.WithField("component", "watchers.disk")

	return w
}

// Implements f(x)={ if total <= 256GB then threshold = 50GB * (total / 256GB) else threshold = 50GB }
func checkThreshold(total, free uint64, minSpaceRequired float64) error {
	var threshold float64

	if minSpaceRequired > 0 {
		threshold = minSpaceRequired * GB
	} else {
		if total <= 256*GB {
			threshold = float64(50*GB) * (float64(total) / float64(256*GB))
		} else {
			threshold = 50 * GB
		}
	}

	if free < uint64(threshold) {
		return fmt.Errorf("low disk space: free=%.2f GB, threshold=%.2f GB", float64(free)/GB, threshold/GB)
	}

	return nil
}

// Run checks the disk space until ctx is done. The checks back off
// exponentially while the space stays low. A pause caused by the watcher is
// lifted when Run returns.
func (w *DiskWatcher) Run(ctx context.Context) {
	var (
		paused            bool
		backoffMultiplier int
		maxInterval       = 10 * w.opts.Interval
	)

	defer func() {
		if paused {
			w.log.Info("resuming the frontier on exit")
			w.p.Resume()
		}
		w.log.Debug("closed")
	}()

	for {
		err := w.check(w.opts.Path, w.opts.MinSpaceRequired)

		switch {
		case err != nil && !w.p.IsPaused():
			w.log.WithField("error", err).Warn("Low disk space, pausing the frontier")
			w.p.Pause()
			paused = true
			backoffMultiplier++
		case err == nil && paused:
			w.log.Info("Disk space is sufficient, resuming the frontier")
			w.p.Resume()
			paused = false
			backoffMultiplier = 0
		case err != nil:
			backoffMultiplier++
		default:
			backoffMultiplier = 0
		}

		if backoffMultiplier > 4 {
			backoffMultiplier = 4
		}

		sleep := w.opts.Interval * (1 << backoffMultiplier)
		if sleep > maxInterval {
			sleep = maxInterval
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
