package journal

import (
	"bufio"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/internetarchive/frontier/internal/pkg/frontier"
	"github.com/internetarchive/frontier/internal/pkg/seencheck"
	"github.com/internetarchive/frontier/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var _ frontier.Journal = (*Journal)(nil)

// Scheduler receives the records replayed from a journal
type Scheduler interface {
	Schedule(r *models.Record) (frontier.Result, error)
}

// Marker is the already-seen store the finished records are marked in
type Marker interface {
	ContainsOrInsert(fp uint64) (bool, error)
}

// RecoverOptions configures Recover
type RecoverOptions struct {
	// PlainIdentity must match the frontier option of the same name
	PlainIdentity bool
	// IncludeFailures marks failed records as seen, so they are not retried
	IncludeFailures bool
	Logger          logrus.FieldLogger
}

// Counts are the results of a journal replay
type Counts struct {
	Lines      int64
	Marked     int64
	Scheduled  int64
	Duplicates int64
	Rejected   int64
}

// Files returns the journal files of dir, oldest first
func Files(fs afero.Fs, dir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list journal files: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), Extension) {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	return files, nil
}

// Recover replays files in two passes. The first marks the finished records
// as seen, the second schedules every added record: the ones marked in the
// first pass come back as duplicates, the others are pending work again.
func Recover(fs afero.Fs, files []string, sched Scheduler, seen Marker, opts RecoverOptions) (Counts, error) {
	var counts Counts

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	err := scan(fs, files, func(code, URL, hop, via string) error {
		counts.Lines++

		if code != Success && code != Disregarded && !(opts.IncludeFailures && code == Failure) {
			return nil
		}

		r := models.NewRecord(URL, "", "")
		if err := r.Canonicalize(!opts.PlainIdentity); err != nil {
			return nil
		}

		if _, err := seen.ContainsOrInsert(seencheck.Fingerprint(r.Identity)); err != nil {
			return err
		}
		counts.Marked++

		return nil
	})
	if err != nil {
		return counts, err
	}

	err = scan(fs, files, func(code, URL, hop, via string) error {
		if code != Added {
			return nil
		}

		r := models.NewRecord(URL, via, hop)
		r.Seed = hop == ""

		res, err := sched.Schedule(r)
		if err != nil {
			return err
		}

		switch res {
		case frontier.Accepted:
			counts.Scheduled++
		case frontier.Duplicate:
			counts.Duplicates++
		default:
			counts.Rejected++
		}

		return nil
	})

	log.WithFields(logrus.Fields{
		"files":      len(files),
		"lines":      counts.Lines,
		"marked":     counts.Marked,
		"scheduled":  counts.Scheduled,
		"duplicates": counts.Duplicates,
	}).Info("Journal replayed")

	return counts, err
}

func scan(fs afero.Fs, files []string, fn func(code, URL, hop, via string) error) error {
	for _, name := range files {
		file, err := fs.Open(name)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) < 2 {
				continue
			}
			for len(fields) < 4 {
				fields = append(fields, empty)
			}

			if err := fn(fields[0], fields[1], unfield(fields[2]), unfield(fields[3])); err != nil {
				file.Close()
				return err
			}
		}

		err = scanner.Err()
		file.Close()
		if err != nil {
			return fmt.Errorf("read journal %s: %w", name, err)
		}
	}

	return nil
}

func unfield(s string) string {
	if s == empty {
		return ""
	}
	return s
}
