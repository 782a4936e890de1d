package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1F47E/dermassist/data"
	"github.com/1F47E/dermassist/pkg/models"
)

type seedFile struct {
	Doctors []models.Doctor `yaml:"doctors"`
}

// Static serves a fixed list of doctors
type Static struct {
	doctors []models.Doctor
}

// NewStatic creates a directory over doctors. The slice is copied.
func NewStatic(doctors []models.Doctor) *Static {
	return &Static{doctors: append([]models.Doctor(nil), doctors...)}
}

// ParseStatic reads a YAML seed with a top level doctors list
func ParseStatic(raw []byte) (*Static, error) {
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse doctors: %w", err)
	}
	for i, d := range seed.Doctors {
		if d.Name == "" || d.City == "" {
			return nil, fmt.Errorf("doctor #%d (id %d): name and city are required", i, d.ID)
		}
	}
	return NewStatic(seed.Doctors), nil
}

// LoadStatic reads the YAML seed at path
func LoadStatic(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read doctors file: %w", err)
	}
	return ParseStatic(raw)
}

// DefaultStatic returns the embedded curated directory
func DefaultStatic() (*Static, error) {
	return ParseStatic(data.Doctors)
}

func (s *Static) Doctors(ctx context.Context, f Filter) ([]models.Doctor, error) {
	return f.Apply(s.doctors), nil
}

func (s *Static) Cities(ctx context.Context) ([]string, error) {
	return CityNames(s.doctors), nil
}

// All returns a copy of every doctor
func (s *Static) All() []models.Doctor {
	return append([]models.Doctor(nil), s.doctors...)
}
