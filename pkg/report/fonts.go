package report

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontsOnce sync.Once
	fontsErr  error
	regular   *truetype.Font
	bold      *truetype.Font
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regular, fontsErr = truetype.Parse(goregular.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse regular font: %w", fontsErr)
			return
		}
		if bold, fontsErr = truetype.Parse(gobold.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

// faces holds the font faces used by a single render. Faces cache glyphs and
// must not be shared between goroutines.
type faces struct {
	brand      font.Face
	diagnosis  font.Face
	badge      font.Face
	label      font.Face
	percentage font.Face
	footer     font.Face
}

func newFaces() (*faces, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	face := func(f *truetype.Font, px float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: px, DPI: 72, Hinting: font.HintingFull})
	}
	return &faces{
		brand:      face(bold, 11),
		diagnosis:  face(bold, 26),
		badge:      face(bold, 12),
		label:      face(regular, 13),
		percentage: face(bold, 40),
		footer:     face(regular, 11),
	}, nil
}

func (f *faces) Close() {
	for _, face := range []font.Face{f.brand, f.diagnosis, f.badge, f.label, f.percentage, f.footer} {
		_ = face.Close()
	}
}
