package report

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/dermassist/pkg/models"
)

var fixedNow = time.UnixMilli(1700000000000)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	args := m.Called(ctx, name, r, size)
	return args.Error(0)
}

// stalledReader blocks every read until it is closed
type stalledReader struct {
	closed  atomic.Bool
	release chan struct{}
}

func newStalledReader() *stalledReader {
	return &stalledReader{release: make(chan struct{})}
}

func (s *stalledReader) Read(p []byte) (int, error) {
	<-s.release
	return 0, io.ErrClosedPipe
}

func (s *stalledReader) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.release)
	}
	return nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeReport(t *testing.T, rep *Report) image.Image {
	img, err := png.Decode(bytes.NewReader(rep.PNG))
	require.NoError(t, err)
	return img
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func melanoma() *models.DiagnosisResult {
	return &models.DiagnosisResult{
		DiagnosisName: "Melanoma",
		RiskLevel:     models.RiskHigh,
		Confidence:    0.87,
	}
}

func newTestRenderer() *Renderer {
	return &Renderer{LoadTimeout: time.Second, Now: func() time.Time { return fixedNow }}
}

func TestRenderHighRiskMelanoma(t *testing.T) {
	src := BytesSource(solidPNG(t, 10, 10, color.RGBA{R: 255, A: 255}))

	rep, err := newTestRenderer().Render(context.Background(), src, melanoma())
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, "dermassist-report-melanoma-1700000000000.png", rep.Filename)
	assert.Contains(t, rep.Filename, "melanoma")
	assert.Equal(t, "red", rep.Palette.Name)
	assert.Equal(t, PaletteFor(models.RiskHigh), rep.Palette)
	assert.Equal(t, 87, rep.ConfidencePercent)
	assert.InDelta(t, 470*0.87, rep.ConfidenceBarWidth, 1e-9)
	assert.True(t, rep.ImageDrawn)

	img := decodeReport(t, rep)
	assert.Equal(t, image.Rect(0, 0, 900, 560), img.Bounds())

	// image panel is filled with the scaled source
	r, g, b := rgbAt(img, 200, 200)
	assert.Greater(t, r, uint8(240))
	assert.Less(t, g, uint8(15))
	assert.Less(t, b, uint8(15))

	// filled part of the confidence bar is blue/cyan, the rest is the track
	_, _, b = rgbAt(img, 400+204, 274)
	assert.Greater(t, b, uint8(200))
	r, _, b = rgbAt(img, 400+409+20, 274)
	assert.Less(t, b, uint8(110))
	assert.Less(t, r, uint8(40))
}

func TestRenderNoOp(t *testing.T) {
	src := BytesSource(solidPNG(t, 4, 4, color.White))

	testCases := []struct {
		name   string
		src    ImageSource
		result *models.DiagnosisResult
	}{
		{"nil image", nil, melanoma()},
		{"empty image", BytesSource(nil), melanoma()},
		{"nil result", src, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &mockSink{}

			rep, err := newTestRenderer().Download(context.Background(), tc.src, tc.result, sink)
			assert.NoError(t, err)
			assert.Nil(t, rep)
			sink.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRenderUndecodableImage(t *testing.T) {
	rep, err := newTestRenderer().Render(context.Background(), BytesSource("not an image"), melanoma())
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.False(t, rep.ImageDrawn)

	// the panel shell is still drawn
	r, g, b := rgbAt(decodeReport(t, rep), 200, 200)
	assert.InDelta(t, 0x11, int(r), 2)
	assert.InDelta(t, 0x22, int(g), 2)
	assert.InDelta(t, 0x48, int(b), 2)
}

func TestRenderMissingFile(t *testing.T) {
	rep, err := newTestRenderer().Render(context.Background(), FileSource("/nonexistent/scan.jpg"), melanoma())
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.False(t, rep.ImageDrawn)
}

func TestRenderLoadTimeout(t *testing.T) {
	stalled := newStalledReader()
	src := SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return stalled, nil
	})
	r := newTestRenderer()
	r.LoadTimeout = 50 * time.Millisecond

	start := time.Now()
	rep, err := r.Render(context.Background(), src, melanoma())
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.False(t, rep.ImageDrawn)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Eventually(t, stalled.closed.Load, time.Second, 10*time.Millisecond)
}

func TestRenderCancelledContext(t *testing.T) {
	stalled := newStalledReader()
	src := SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return stalled, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newTestRenderer().Render(ctx, src, melanoma())
	assert.Nil(t, rep)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Eventually(t, stalled.closed.Load, time.Second, 10*time.Millisecond)
}

func TestRenderClosesSource(t *testing.T) {
	var closed atomic.Bool
	data := solidPNG(t, 8, 8, color.White)
	src := SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
		return closeRecorder{Reader: bytes.NewReader(data), closed: &closed}, nil
	})

	rep, err := newTestRenderer().Render(context.Background(), src, melanoma())
	require.NoError(t, err)
	assert.True(t, rep.ImageDrawn)
	assert.True(t, closed.Load())
}

type closeRecorder struct {
	io.Reader
	closed *atomic.Bool
}

func (c closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

func TestRenderConfidenceBounds(t *testing.T) {
	src := BytesSource(solidPNG(t, 4, 4, color.White))

	testCases := []struct {
		confidence float64
		percent    int
		width      float64
	}{
		{0, 0, 0},
		{0.004, 0, 0},
		{0.5, 50, 235},
		{1, 100, 470},
		{1.3, 130, 470},
		{math.NaN(), 0, 0},
	}

	for _, tc := range testCases {
		result := &models.DiagnosisResult{Diagnosis: "nv", Confidence: tc.confidence}
		rep, err := newTestRenderer().Render(context.Background(), src, result)
		require.NoError(t, err)
		assert.Equal(t, tc.percent, rep.ConfidencePercent)
		assert.InDelta(t, tc.width, rep.ConfidenceBarWidth, 1e-9)
		assert.Equal(t, "green", rep.Palette.Name)
	}
}

func TestDownloadToDirectory(t *testing.T) {
	dir := t.TempDir()
	sink := DirSink{Dir: dir + "/reports"}
	src := BytesSource(solidPNG(t, 30, 60, color.White))

	rep, err := newTestRenderer().Download(context.Background(), src, melanoma(), sink)
	require.NoError(t, err)
	require.NotNil(t, rep)

	saved, err := os.ReadFile(sink.Path(rep.Filename))
	require.NoError(t, err)
	assert.Equal(t, rep.PNG, saved)
}

func TestDownloadSinkError(t *testing.T) {
	sink := &mockSink{}
	sink.On("Save", mock.Anything, "dermassist-report-melanoma-1700000000000.png", mock.Anything, mock.Anything).
		Return(errors.New("disk full"))

	src := BytesSource(solidPNG(t, 4, 4, color.White))
	rep, err := newTestRenderer().Download(context.Background(), src, melanoma(), sink)
	assert.Nil(t, rep)
	assert.ErrorContains(t, err, "disk full")
	sink.AssertExpectations(t)
}

func TestDataURL(t *testing.T) {
	src := BytesSource(solidPNG(t, 4, 4, color.White))
	rep, err := newTestRenderer().Render(context.Background(), src, melanoma())
	require.NoError(t, err)

	url := rep.DataURL()
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,iVBORw0KGgo"))
}

func TestPaletteFor(t *testing.T) {
	testCases := []struct {
		risk models.RiskLevel
		name string
	}{
		{models.RiskHigh, "red"},
		{models.RiskModerate, "amber"},
		{models.RiskLow, "green"},
		{"", "green"},
		{"Extreme Risk", "green"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.risk), func(t *testing.T) {
			assert.Equal(t, tc.name, PaletteFor(tc.risk).Name)
		})
	}
	assert.Equal(t, color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}, PaletteFor(models.RiskHigh).Border)
}
