package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/1F47E/dermassist/pkg/models"
)

const filenamePrefix = "dermassist-report"

// Slug returns the lower-case identifier used in report filenames: the
// diagnosis code when present, otherwise the display name.
func Slug(result models.DiagnosisResult) string {
	src := result.Diagnosis
	if strings.TrimSpace(src) == "" {
		src = result.DisplayName()
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(src) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "unknown"
	}
	return slug
}

// Filename returns dermassist-report-<slug>-<unix millis>.png
func Filename(result models.DiagnosisResult, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d.png", filenamePrefix, Slug(result), at.UnixMilli())
}
