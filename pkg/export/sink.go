package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// sink is a CSV file, optionally gzip compressed, optionally written under
// a temporary name and renamed into place on commit.
type sink struct {
	file *os.File
	gz   *gzip.Writer
	csv  *csv.Writer

	path     string
	tempPath string
}

// createSink opens path for writing. A path ending in ".gz" is compressed.
func createSink(path string, atomic bool) (*sink, error) {
	s := &sink{path: path}

	var err error
	if atomic {
		s.file, err = os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
		if err == nil {
			s.tempPath = s.file.Name()
		}
	} else {
		s.file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("create sink: %w", err)
	}

	var w io.Writer = s.file
	if strings.HasSuffix(path, ".gz") {
		s.gz = gzip.NewWriter(s.file)
		w = s.gz
	}
	s.csv = csv.NewWriter(w)
	return s, nil
}

func (s *sink) write(row []string) error {
	return s.csv.Write(row)
}

// close flushes and closes every layer. With commit set, a temporary file
// is renamed to the final path; otherwise it is removed. A non-atomic sink
// keeps whatever was written.
func (s *sink) close(commit bool) error {
	s.csv.Flush()
	err := s.csv.Error()
	if s.gz != nil {
		err = errors.Join(err, s.gz.Close())
	}
	err = errors.Join(err, s.file.Close())

	if s.tempPath == "" {
		return err
	}
	if commit && err == nil {
		if renameErr := os.Rename(s.tempPath, s.path); renameErr != nil {
			os.Remove(s.tempPath)
			return fmt.Errorf("rename sink: %w", renameErr)
		}
		return nil
	}
	os.Remove(s.tempPath)
	return err
}
