package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink receives rendered reports
type Sink interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) error
}

// DirSink writes reports into a local directory, creating it when needed
type DirSink struct {
	Dir string
}

func (s DirSink) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	path := s.Path(name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Path returns where a report called name is written
func (s DirSink) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// MultiSink saves to every sink in order and stops at the first failure
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	if len(m) == 1 {
		return m[0].Save(ctx, name, r, size)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to buffer report: %w", err)
	}
	for _, sink := range m {
		if err := sink.Save(ctx, name, bytes.NewReader(data), int64(len(data))); err != nil {
			return err
		}
	}
	return nil
}
