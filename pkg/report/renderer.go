// Package report renders the downloadable diagnosis report card: a fixed
// 900x560 PNG combining the scanned image, the diagnosis, a risk badge and a
// confidence bar.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/1F47E/dermassist/pkg/models"
)

// DefaultLoadTimeout bounds how long Render waits for the source image
const DefaultLoadTimeout = 5 * time.Second

const (
	canvasWidth  = 900
	canvasHeight = 560
	gridPitch    = 32

	panelX      = 30
	panelY      = 30
	panelSize   = 340
	panelRadius = 16

	// left edge of the text column
	columnX = 400

	headerY      = 30
	headerHeight = 60
	headerRadius = 12

	badgeY       = 145
	badgeHeight  = 28
	badgeRadius  = 8
	badgePadding = 24

	barY      = 270
	barHeight = 8
	barRadius = 4

	footerHeight = 44

	brandLabel = "DERMASSIST AI  •  ANALYSIS REPORT"
	disclaimer = "DermAssist AI  •  Not a substitute for professional medical advice"
)

var (
	backgroundStops = []struct {
		offset float64
		hex    string
	}{
		{0, "#0a1628"},
		{0.5, "#0d1f3c"},
		{1, "#0a1628"},
	}

	dotColor        = rgba(59, 130, 246, 0.06)
	panelFill       = hex("#112248")
	panelBorder     = hex("#1e3a6e")
	headerFill      = rgba(59, 130, 246, 0.15)
	brandColor      = hex("#60a5fa")
	headlineColor   = hex("#e8f0ff")
	labelColor      = hex("#6b8fc2")
	trackColor      = hex("#1a3260")
	barStart        = hex("#3b82f6")
	barEnd          = hex("#06b6d4")
	footerTextColor = hex("#2d4a78")
)

// Report is a rendered report card
type Report struct {
	Filename  string
	PNG       []byte
	Diagnosis models.DiagnosisResult
	Palette   Palette

	ConfidencePercent  int
	ConfidenceBarWidth float64
	ImageDrawn         bool
	CreatedAt          time.Time
}

// DataURL returns the PNG as a data URL
func (r *Report) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.PNG)
}

// Renderer draws report cards. The zero value is ready to use.
type Renderer struct {
	// LoadTimeout bounds the wait for the source image. Zero means DefaultLoadTimeout.
	LoadTimeout time.Duration
	// Now is used for the filename timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewRenderer creates a renderer with the given image load timeout
func NewRenderer(loadTimeout time.Duration) *Renderer {
	return &Renderer{LoadTimeout: loadTimeout}
}

// Render draws the report for result over the image from src. If either is
// nil there is nothing to render and Render returns a nil report and no
// error. An image that cannot be opened, decoded or loaded in time is left out
// while the rest of the report is still drawn. Render only fails when ctx is
// done or the canvas cannot be encoded.
func (r *Renderer) Render(ctx context.Context, src ImageSource, result *models.DiagnosisResult) (*Report, error) {
	if absent(src) || result == nil {
		return nil, nil
	}

	logger := log.WithField("prefix", "report").WithField("diagnosis", result.Diagnosis)

	faces, err := newFaces()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	dc := gg.NewContext(canvasWidth, canvasHeight)
	drawBackground(dc)

	img, err := r.loadImage(ctx, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithError(err).Warn("source image unavailable, rendering without it")
	}
	drawn := drawImagePanel(dc, img)

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	rep := &Report{
		Diagnosis:  *result,
		Palette:    PaletteFor(result.RiskLevel),
		ImageDrawn: drawn,
		CreatedAt:  now(),
	}
	rep.Filename = Filename(*result, rep.CreatedAt)

	drawHeader(dc, faces)
	drawDiagnosis(dc, faces, *result, rep.Palette)
	rep.ConfidencePercent, rep.ConfidenceBarWidth = drawConfidence(dc, faces, result.Confidence)
	drawFooter(dc, faces)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	rep.PNG = buf.Bytes()

	logger.WithField("file", rep.Filename).WithField("bytes", len(rep.PNG)).Debug("report rendered")
	return rep, nil
}

// Download renders the report and hands it to sink. Nothing is saved when
// there is nothing to render.
func (r *Renderer) Download(ctx context.Context, src ImageSource, result *models.DiagnosisResult, sink Sink) (*Report, error) {
	rep, err := r.Render(ctx, src, result)
	if err != nil || rep == nil {
		return nil, err
	}
	if err := sink.Save(ctx, rep.Filename, bytes.NewReader(rep.PNG), int64(len(rep.PNG))); err != nil {
		return nil, fmt.Errorf("failed to save report %s: %w", rep.Filename, err)
	}
	return rep, nil
}

func absent(src ImageSource) bool {
	if src == nil {
		return true
	}
	if b, ok := src.(BytesSource); ok && len(b) == 0 {
		return true
	}
	if p, ok := src.(FileSource); ok && p == "" {
		return true
	}
	return false
}

func (r *Renderer) loadTimeout() time.Duration {
	if r.LoadTimeout > 0 {
		return r.LoadTimeout
	}
	return DefaultLoadTimeout
}

type loadResult struct {
	img image.Image
	err error
}

// loadImage decodes the source in the background so a stalled reader cannot
// hold the render past the load timeout. The reader is closed on every path,
// which also unblocks a pending read once the wait is abandoned.
func (r *Renderer) loadImage(ctx context.Context, src ImageSource) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, r.loadTimeout())
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		img, err := decodeSource(ctx, src)
		done <- loadResult{img: img, err: err}
	}()

	select {
	case res := <-done:
		return res.img, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("image load abandoned: %w", ctx.Err())
	}
}

func decodeSource(ctx context.Context, src ImageSource) (image.Image, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if rc == nil {
		return nil, errors.New("image source returned no reader")
	}

	var once sync.Once
	release := func() { once.Do(func() { _ = rc.Close() }) }
	stop := context.AfterFunc(ctx, release)
	defer stop()
	defer release()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func drawBackground(dc *gg.Context) {
	grad := gg.NewLinearGradient(0, 0, 0, canvasHeight)
	for _, stop := range backgroundStops {
		grad.AddColorStop(stop.offset, hex(stop.hex))
	}
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, canvasWidth, canvasHeight)
	dc.Fill()

	dc.SetColor(dotColor)
	for x := 0; x < canvasWidth; x += gridPitch {
		for y := 0; y < canvasHeight; y += gridPitch {
			dc.DrawCircle(float64(x), float64(y), 1)
		}
	}
	dc.Fill()
}

// drawImagePanel draws the panel shell and, when img is usable, the image
// scaled to fit and centred inside it. It reports whether the image was drawn.
func drawImagePanel(dc *gg.Context, img image.Image) bool {
	dc.DrawRoundedRectangle(panelX, panelY, panelSize, panelSize, panelRadius)
	dc.SetColor(panelFill)
	dc.FillPreserve()
	dc.SetColor(panelBorder)
	dc.SetLineWidth(1.5)
	dc.StrokePreserve()

	if img == nil || img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		dc.ClearPath()
		return false
	}

	b := img.Bounds()
	scale := math.Min(panelSize/float64(b.Dx()), panelSize/float64(b.Dy()))
	iw := float64(b.Dx()) * scale
	ih := float64(b.Dy()) * scale

	scaled := image.NewRGBA(image.Rect(0, 0, max(1, int(math.Round(iw))), max(1, int(math.Round(ih)))))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Over, nil)

	dc.Clip()
	dc.DrawImage(scaled, int(math.Round(panelX+(panelSize-iw)/2)), int(math.Round(panelY+(panelSize-ih)/2)))
	dc.ResetClip()
	return true
}

func drawHeader(dc *gg.Context, f *faces) {
	dc.SetColor(headerFill)
	dc.DrawRoundedRectangle(columnX, headerY, canvasWidth-columnX-30, headerHeight, headerRadius)
	dc.Fill()

	dc.SetColor(brandColor)
	dc.SetFontFace(f.brand)
	dc.DrawString(brandLabel, columnX+16, 55)
}

func drawDiagnosis(dc *gg.Context, f *faces, result models.DiagnosisResult, p Palette) {
	dc.SetColor(headlineColor)
	dc.SetFontFace(f.diagnosis)
	dc.DrawString(result.DisplayName(), columnX, 130)

	riskText := string(result.RiskLevel)
	if riskText == "" {
		riskText = string(models.RiskLow)
	}

	dc.SetFontFace(f.badge)
	textWidth, _ := dc.MeasureString(riskText)
	badgeWidth := textWidth + badgePadding

	dc.DrawRoundedRectangle(columnX, badgeY, badgeWidth, badgeHeight, badgeRadius)
	dc.SetColor(p.Fill)
	dc.FillPreserve()
	dc.SetColor(p.Border)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	dc.SetColor(p.Text)
	dc.DrawStringAnchored(riskText, columnX+badgeWidth/2, 164, 0.5, 0)
}

// drawConfidence draws the score and bar and returns the rounded percentage
// and the filled bar width.
func drawConfidence(dc *gg.Context, f *faces, confidence float64) (int, float64) {
	dc.SetColor(labelColor)
	dc.SetFontFace(f.label)
	dc.DrawString("CONFIDENCE SCORE", columnX, 215)

	// NaN renders as an empty score
	if math.IsNaN(confidence) {
		confidence = 0
	}
	percent := int(math.Round(confidence * 100))
	dc.SetColor(headlineColor)
	dc.SetFontFace(f.percentage)
	dc.DrawString(fmt.Sprintf("%d%%", percent), columnX, 260)

	trackWidth := float64(canvasWidth - columnX - 30)
	dc.SetColor(trackColor)
	dc.DrawRoundedRectangle(columnX, barY, trackWidth, barHeight, barRadius)
	dc.Fill()

	fill := trackWidth * float64(percent) / 100
	fill = math.Max(0, math.Min(fill, trackWidth))
	if fill > 0 {
		grad := gg.NewLinearGradient(columnX, 0, columnX+fill, 0)
		grad.AddColorStop(0, barStart)
		grad.AddColorStop(1, barEnd)
		dc.SetFillStyle(grad)
		dc.DrawRoundedRectangle(columnX, barY, fill, barHeight, math.Min(barRadius, fill/2))
		dc.Fill()
	}
	return percent, fill
}

func drawFooter(dc *gg.Context, f *faces) {
	dc.SetColor(trackColor)
	dc.DrawRectangle(0, canvasHeight-footerHeight, canvasWidth, footerHeight)
	dc.Fill()

	dc.SetColor(footerTextColor)
	dc.SetFontFace(f.footer)
	dc.DrawString(disclaimer, 24, canvasHeight-17)
}
