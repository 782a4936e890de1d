package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/1F47E/dermassist/pkg/geo"
	"github.com/1F47E/dermassist/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#60A5FA")).
			MarginBottom(1)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#E8F0FF"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B8FC2"))

	distanceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	riskStyles = map[models.RiskLevel]lipgloss.Style{
		models.RiskHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171")),
		models.RiskModerate: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24")),
		models.RiskLow:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399")),
	}

	colorEnabled = true
)

func init() {
	// Disable styling if not in a terminal
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		colorEnabled = false
	}
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled {
		return s
	}
	return style.Render(s)
}

func printTitle(w io.Writer, title string) {
	if !colorEnabled {
		fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title)))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printSuccess(w io.Writer, message string) {
	fmt.Fprintln(w, render(successStyle, "✓ "+message))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, render(errorStyle, "✗ "+err.Error()))
}

func formatDistance(d *models.Distance) string {
	if d == nil {
		return ""
	}
	return render(distanceStyle, d.String())
}

func printDoctors(w io.Writer, doctors []models.Doctor) {
	printTitle(w, fmt.Sprintf("Dermatologists (%d)", len(doctors)))
	for _, d := range doctors {
		line := render(nameStyle, d.Name) + "  " + render(dimStyle, d.Specialty+" · "+d.City)
		if dist := formatDistance(d.DistanceKm); dist != "" {
			line += "  " + dist
		}
		fmt.Fprintln(w, line)

		details := []string{fmt.Sprintf("★ %.1f (%d reviews)", d.Rating, d.ReviewCount), fmt.Sprintf("₹%d", d.ConsultationFee)}
		if d.Clinic != "" {
			details = append([]string{d.Clinic}, details...)
		}
		fmt.Fprintln(w, "  "+render(dimStyle, strings.Join(details, " · ")))
		if len(d.SpecializesIn) > 0 {
			fmt.Fprintln(w, "  "+render(dimStyle, strings.Join(d.SpecializesIn, ", ")))
		}
	}
}

func printCities(w io.Writer, cities []models.City) {
	printTitle(w, fmt.Sprintf("Cities (%d)", len(cities)))
	for _, c := range cities {
		fmt.Fprintf(w, "%s  %s\n", render(nameStyle, c.Name), render(dimStyle, fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)))
	}
}

func printNearby(w io.Writer, cities []geo.NearbyCity) {
	printTitle(w, fmt.Sprintf("Nearest cities (%d)", len(cities)))
	for _, c := range cities {
		fmt.Fprintf(w, "%s  %s\n", render(nameStyle, c.Name), render(distanceStyle, fmt.Sprintf("%.1f km", c.DistanceKm)))
	}
}

func riskLabel(risk models.RiskLevel) string {
	style, ok := riskStyles[risk]
	if !ok {
		style = riskStyles[models.RiskLow]
	}
	return render(style, string(risk))
}
