package config

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func loadExclusions(file string) ([]*regexp.Regexp, error) {
	var (
		regexes []string
		err     error
	)

	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		logrus.WithField("file", file).Info("reading (remote) exclusion file")
		regexes, err = readRemoteExclusionFile(file)
	} else {
		logrus.WithField("file", file).Info("reading (local) exclusion file")
		regexes, err = readLocalExclusionFile(file)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithField("regexes", len(regexes)).Info("compiling exclusion regexes")

	compiledRegexes, errs := compileRegexes(regexes)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile %d regexes: %w", len(errs), errs[0])
	}

	return compiledRegexes, nil
}

func readRemoteExclusionFile(URL string) (regexes []string, err error) {
	httpClient := &http.Client{
		Timeout: time.Second * 5,
	}

	resp, err := httpClient.Get(URL)
	if err != nil {
		return regexes, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return regexes, fmt.Errorf("failed to download exclusion file: %s", resp.Status)
	}

	return readExclusions(resp.Body)
}

func readLocalExclusionFile(file string) (regexes []string, err error) {
	f, err := os.Open(file)
	if err != nil {
		return regexes, err
	}
	defer f.Close()

	return readExclusions(f)
}

// readExclusions reads one regex per line, skipping blank lines and # comments
func readExclusions(r io.Reader) (regexes []string, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		regexes = append(regexes, line)
	}

	return regexes, scanner.Err()
}

func compileRegexes(regexes []string) (compiledRegexes []*regexp.Regexp, errs []error) {
	for _, regex := range regexes {
		compiledRegex, err := regexp.Compile(regex)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"regex": regex,
				"error": err,
			}).Error("failed to compile regex")
			errs = append(errs, err)
			continue
		}

		compiledRegexes = append(compiledRegexes, compiledRegex)
	}

	return compiledRegexes, errs
}
