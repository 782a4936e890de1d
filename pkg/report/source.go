package report

import (
	"bytes"
	"context"
	"io"
	"os"
)

// ImageSource opens the scanned image. The renderer closes the returned
// reader once the image is decoded or loading is abandoned.
type ImageSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SourceFunc adapts a function to ImageSource
type SourceFunc func(ctx context.Context) (io.ReadCloser, error)

func (f SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

// FileSource reads the image from a local path
type FileSource string

func (p FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return os.Open(string(p))
}

// BytesSource serves an image already held in memory
type BytesSource []byte

func (b BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}
