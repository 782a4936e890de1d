package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/1F47E/dermassist/pkg/models"
	"github.com/1F47E/dermassist/pkg/report"
)

const maxUploadSize = 20 << 20

type reportForm struct {
	Diagnosis     string `form:"diagnosis"`
	DiagnosisName string `form:"diagnosis_name"`
	RiskLevel     string `form:"risk_level"`
	Confidence    string `form:"confidence"`
}

// result converts the form into a diagnosis. It returns nil when the form
// carries no diagnosis at all.
func (f reportForm) result() (*models.DiagnosisResult, error) {
	if f.Diagnosis == "" && f.DiagnosisName == "" {
		return nil, nil
	}

	res := &models.DiagnosisResult{
		Diagnosis:     f.Diagnosis,
		DiagnosisName: f.DiagnosisName,
		RiskLevel:     models.RiskLevel(f.RiskLevel),
	}
	if res.RiskLevel == "" {
		res.RiskLevel = res.Risk()
	}
	if f.Confidence != "" {
		confidence, err := strconv.ParseFloat(f.Confidence, 64)
		if err != nil || math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
			return nil, fmt.Errorf("confidence must be a number between 0 and 1, got %q", f.Confidence)
		}
		res.Confidence = confidence
	}
	return res, nil
}

func (s *Server) createReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var form reportForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	result, err := form.result()
	if err != nil {
		abortWithEncoding(c, http.StatusBadRequest, errorInvalidParameters, err)
		return
	}

	var src report.ImageSource
	if fh, err := c.FormFile("image"); err == nil && fh.Size > 0 {
		src = report.SourceFunc(func(ctx context.Context) (io.ReadCloser, error) {
			return fh.Open()
		})
	}

	ctx := c.Request.Context()
	rep, err := s.renderer.Render(ctx, src, result)
	if err != nil {
		abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer, err)
		return
	}
	if rep == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if s.sink != nil {
		if err := s.sink.Save(ctx, rep.Filename, bytes.NewReader(rep.PNG), int64(len(rep.PNG))); err != nil {
			abortWithEncoding(c, http.StatusInternalServerError, errorStorageFailed, err)
			return
		}
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rep.Filename))
	c.Data(http.StatusOK, "image/png", rep.PNG)
}
