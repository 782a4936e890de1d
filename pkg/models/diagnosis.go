package models

import "strings"

// RiskLevel is the severity tier attached to a diagnosis
type RiskLevel string

const (
	RiskHigh     RiskLevel = "High Risk"
	RiskModerate RiskLevel = "Moderate Risk"
	RiskLow      RiskLevel = "Low Risk"
)

// DiagnosisResult is the top prediction returned for a scanned image
type DiagnosisResult struct {
	Diagnosis     string    `json:"diagnosis"`
	DiagnosisName string    `json:"diagnosis_name,omitempty"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Confidence    float64   `json:"confidence"`
}

// DisplayName returns the label shown to the user
func (r DiagnosisResult) DisplayName() string {
	if r.DiagnosisName != "" {
		return r.DiagnosisName
	}
	if lesion, ok := LookupLesion(r.Diagnosis); ok {
		return lesion.Name
	}
	return r.Diagnosis
}

// Risk returns the risk level, deriving it from the lesion class when unset
func (r DiagnosisResult) Risk() RiskLevel {
	if r.RiskLevel != "" {
		return r.RiskLevel
	}
	if lesion, ok := LookupLesion(r.Diagnosis); ok {
		return lesion.Risk
	}
	return RiskLow
}

// LesionClass is one of the HAM10000 classes the classifier predicts
type LesionClass struct {
	Code string
	Name string
	Risk RiskLevel
}

var lesionClasses = []LesionClass{
	{Code: "mel", Name: "Melanoma", Risk: RiskHigh},
	{Code: "bcc", Name: "Basal Cell Carcinoma", Risk: RiskHigh},
	{Code: "akiec", Name: "Actinic Keratosis", Risk: RiskHigh},
	{Code: "bkl", Name: "Benign Keratosis", Risk: RiskModerate},
	{Code: "df", Name: "Dermatofibroma", Risk: RiskModerate},
	{Code: "vasc", Name: "Vascular Lesion", Risk: RiskModerate},
	{Code: "nv", Name: "Melanocytic Nevi", Risk: RiskLow},
}

// LesionClasses returns the known lesion classes
func LesionClasses() []LesionClass {
	out := make([]LesionClass, len(lesionClasses))
	copy(out, lesionClasses)
	return out
}

// LookupLesion finds a lesion class by its code, ignoring case
func LookupLesion(code string) (LesionClass, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range lesionClasses {
		if c.Code == code {
			return c, true
		}
	}
	return LesionClass{}, false
}
