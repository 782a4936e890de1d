package report

import (
	"fmt"
	"image/color"

	"github.com/1F47E/dermassist/pkg/models"
)

// Palette is the badge color scheme for a risk level
type Palette struct {
	Name   string
	Fill   color.NRGBA
	Border color.NRGBA
	Text   color.NRGBA
}

var (
	paletteHigh = Palette{
		Name:   "red",
		Fill:   rgba(239, 68, 68, 0.2),
		Border: hex("#ef4444"),
		Text:   hex("#f87171"),
	}
	paletteModerate = Palette{
		Name:   "amber",
		Fill:   rgba(245, 158, 11, 0.2),
		Border: hex("#f59e0b"),
		Text:   hex("#fbbf24"),
	}
	paletteLow = Palette{
		Name:   "green",
		Fill:   rgba(16, 185, 129, 0.2),
		Border: hex("#10b981"),
		Text:   hex("#34d399"),
	}
)

// PaletteFor returns the scheme for a risk level. Unknown levels use the low
// risk scheme.
func PaletteFor(risk models.RiskLevel) Palette {
	switch risk {
	case models.RiskHigh:
		return paletteHigh
	case models.RiskModerate:
		return paletteModerate
	default:
		return paletteLow
	}
}

func hex(s string) color.NRGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		panic(fmt.Sprintf("report: bad color %q", s))
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

func rgba(r, g, b uint8, alpha float64) color.NRGBA {
	return color.NRGBA{R: r, G: g, B: b, A: uint8(alpha*255 + 0.5)}
}
