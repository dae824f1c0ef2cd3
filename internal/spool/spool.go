// Package spool hands uploaded files to batch workers through short-lived
// files in the upload directory.
package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-crop-inspector/internal/logger"
)

// subdir holds nothing but spool files, so anything found there at startup
// was left behind by a process that died mid-batch.
const subdir = "spool"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Spool writes and reclaims hand-off files under <uploadDir>/spool.
type Spool struct {
	dir string
}

// New creates the spool directory below uploadDir and removes any files
// left in it by an earlier process.
func New(uploadDir string) (*Spool, error) {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	dir := filepath.Join(uploadDir, subdir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	s := &Spool{dir: dir}
	removed, err := s.sweep()
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		logger.Component("spool").WithFields(logrus.Fields{
			"dir":     dir,
			"removed": removed,
		}).Warn("Removed orphaned spool files")
	}
	return s, nil
}

func (s *Spool) sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read spool directory: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove orphaned spool file %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Dir is the directory spool files are written to.
func (s *Spool) Dir() string {
	return s.dir
}

// SanitizeFilename reduces name to a safe base name. Path components are
// dropped, runs of unsafe characters become "_", and leading dots are
// stripped. An empty result becomes "upload".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// With writes data to a uniquely named file, passes its path to fn and
// removes the file once fn returns, whatever the outcome.
func (s *Spool) With(name string, data []byte, fn func(path string) error) error {
	path := filepath.Join(s.dir, uuid.NewString()+"-"+SanitizeFilename(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to spool %s: %w", name, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Component("spool").WithError(err).WithField("path", path).Warn("Failed to remove spool file")
		}
	}()
	return fn(path)
}
