// Package decode turns vendor payloads (ZIP archives holding CSV or JSON
// files) into model tables.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrEmpty is returned when a payload decodes to zero rows.
	ErrEmpty = errors.New("decode: no items in payload")

	// ErrNoDataFile is returned when an archive holds nothing readable.
	ErrNoDataFile = errors.New("decode: no CSV or JSON file in archive")

	// ErrNoArchive is returned when no local archive matches a pattern.
	ErrNoArchive = errors.New("decode: no archive matches pattern")
)

// OpenZip reads an in-memory archive.
func OpenZip(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode: open zip: %w", err)
	}
	return r, nil
}

// Find returns the first entry accepted by match, in archive order.
func Find(files []*zip.File, match func(name string) bool) *zip.File {
	for _, f := range files {
		if match(f.Name) {
			return f
		}
	}
	return nil
}

// ReadEntry reads a whole archive entry.
func ReadEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("decode: read %s: %w", f.Name, err)
	}
	return data, nil
}

// CSVEntry matches dashboard report entries: under csv/, ending in .csv
// and containing term.
func CSVEntry(term string) func(string) bool {
	return func(name string) bool {
		return strings.HasPrefix(name, "csv/") && strings.HasSuffix(name, ".csv") && strings.Contains(name, term)
	}
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// FindArchive returns the first file in dir matching the glob pattern.
func FindArchive(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("decode: glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoArchive, pattern)
	}
	return matches[0], nil
}
