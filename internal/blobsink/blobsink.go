// Package blobsink writes received BLOB element payloads to a filesystem
// folder under deterministic, web-safe filenames.
//
// Grounded on the teacher's setBlobVector handler (indiclient.go), which
// base64-decodes val.Value with encoding/base64.NewDecoder and copies it
// into an afero.Fs file named "<device>_<property>_<element><format>".
// This package generalizes that naming to include a timestamp component
// (so repeated captures of the same element don't clobber each other, per
// SPEC_FULL.md §4.9) and makes the destination folder configurable and
// auto-created.
package blobsink

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rickbassham/logging"
	"github.com/spf13/afero"
)

// unsafeFilenameChar matches anything that isn't a web-safe filename byte;
// everything else is replaced with "_".
var unsafeFilenameChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Sink writes BLOB payloads into folder on fs, logging and continuing past
// any write failure (spec.md §7: BLOB sink write failure -> log, continue).
type Sink struct {
	fs     afero.Fs
	folder string
	log    logging.Logger
}

// New returns a Sink rooted at folder. folder is created (including parents)
// on the first Write call if it does not already exist.
func New(fs afero.Fs, folder string, log logging.Logger) *Sink {
	return &Sink{fs: fs, folder: folder, log: log}
}

// Write decodes a base64 BLOB payload and stores it under a filename derived
// from device, property, element, timestamp and format (e.g. ".fits"). It
// returns the path written, or an error if the destination could not be
// created or the payload was not valid base64 - callers should log the
// error via the sink's own logger and continue processing the enclosing
// frame; this method never panics on malformed input.
func (s *Sink) Write(device, property, element, timestamp, format string, encoded string) (string, error) {
	if err := s.fs.MkdirAll(s.folder, 0o755); err != nil {
		s.log.WithField("folder", s.folder).WithError(err).Warn("could not create blob folder")
		return "", fmt.Errorf("blobsink: mkdir %s: %w", s.folder, err)
	}

	name := Filename(device, property, element, timestamp, format)
	path := filepath.Join(s.folder, name)

	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		s.log.WithField("file", path).WithError(err).Warn("could not open blob file")
		return "", fmt.Errorf("blobsink: open %s: %w", path, err)
	}
	defer f.Close()

	r := base64.NewDecoder(base64.StdEncoding, strings.NewReader(strings.TrimSpace(encoded)))
	if _, err := io.Copy(f, r); err != nil {
		s.log.WithField("file", path).WithError(err).Warn("could not write blob file")
		return "", fmt.Errorf("blobsink: write %s: %w", path, err)
	}

	return path, nil
}

// Filename deterministically derives a web-safe filename for one BLOB
// element capture. The timestamp component keeps repeated captures of the
// same (device, property, element) distinct instead of overwriting one
// another, which the teacher's fixed "<device>_<property>_<element><format>"
// naming does not guard against.
func Filename(device, property, element, timestamp, format string) string {
	base := fmt.Sprintf("%s_%s_%s_%s%s", device, property, element, timestamp, format)
	return unsafeFilenameChar.ReplaceAllString(base, "_")
}
