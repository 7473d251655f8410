package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gosuri/uilive"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrNoValidSeed is returned by ReadSeedList when no line of the file is a
// valid URL
var ErrNoValidSeed = errors.New("seed list has no valid URL")

// ErrSeedListNotFound is returned by ReadSeedList when path is not a file
var ErrSeedListNotFound = errors.New("seed list not found")

// ReadSeedList returns the valid URLs of the seed list at path, one per
// line. Blank lines and lines starting with # are skipped. When progress is
// not nil the count of URLs read is redrawn on it.
func ReadSeedList(fs afero.Fs, path string, progress io.Writer) (seeds []string, err error) {
	var totalCount, validCount int

	if !FileExists(fs, path) {
		return seeds, fmt.Errorf("%w: %s", ErrSeedListNotFound, path)
	}

	file, err := fs.Open(path)
	if err != nil {
		return seeds, err
	}
	defer file.Close()

	var writer *uilive.Writer
	if progress != nil {
		writer = uilive.New()
		writer.Out = progress
		writer.Start()
		defer writer.Stop()
	}

	logrus.WithFields(logrus.Fields{
		"path": path,
	}).Info("start reading seed list")

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		totalCount++

		URL, err := url.Parse(line)
		if err == nil {
			err = ValidateURL(URL)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"url":   line,
				"error": err.Error(),
			}).Debug("this is not a valid URL")
			continue
		}

		seeds = append(seeds, URL.String())
		validCount++

		if writer != nil {
			fmt.Fprintf(writer, "\t   Reading seed list.. Found %d valid URLs out of %d URLs read.\n", validCount, totalCount)
			writer.Flush()
		}
	}

	if err := scanner.Err(); err != nil {
		return seeds, err
	}

	if len(seeds) == 0 {
		return seeds, ErrNoValidSeed
	}

	return seeds, nil
}
