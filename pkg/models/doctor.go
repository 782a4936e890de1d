package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Doctor is a directory entry as served by the backend
type Doctor struct {
	ID               int      `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Specialty        string   `json:"specialty" yaml:"specialty"`
	Qualification    string   `json:"qualification,omitempty" yaml:"qualification"`
	Clinic           string   `json:"clinic,omitempty" yaml:"clinic"`
	Address          string   `json:"address,omitempty" yaml:"address"`
	City             string   `json:"city" yaml:"city"`
	Phone            string   `json:"phone,omitempty" yaml:"phone"`
	Email            string   `json:"email,omitempty" yaml:"email"`
	ExperienceYears  int      `json:"experience_years" yaml:"experience_years"`
	Rating           float64  `json:"rating" yaml:"rating"`
	ReviewCount      int      `json:"review_count" yaml:"review_count"`
	AvailableSlots   []string `json:"available_slots" yaml:"available_slots"`
	AvailableDays    []string `json:"available_days" yaml:"available_days"`
	ConsultationFee  int      `json:"consultation_fee" yaml:"consultation_fee"`
	Languages        []string `json:"languages,omitempty" yaml:"languages"`
	ImagePlaceholder string   `json:"image_placeholder,omitempty" yaml:"image_placeholder"`
	SpecializesIn    []string `json:"specializes_in" yaml:"specializes_in"`

	// DistanceKm is derived per request. nil means no user location was known.
	DistanceKm *Distance `json:"distance_km,omitempty" yaml:"-"`
}

// Distance is a rounded distance in kilometers that may be unknown
type Distance struct {
	Km    int
	Known bool
}

// KnownDistance returns a known distance of km kilometers
func KnownDistance(km int) *Distance {
	return &Distance{Km: km, Known: true}
}

// UnknownDistance returns a distance with no known value
func UnknownDistance() *Distance {
	return &Distance{}
}

// Less orders known distances ascending and unknown ones after all known ones
func (d Distance) Less(other Distance) bool {
	if d.Known != other.Known {
		return d.Known
	}
	return d.Known && d.Km < other.Km
}

func (d Distance) String() string {
	if !d.Known {
		return "unknown"
	}
	return strconv.Itoa(d.Km) + " km"
}

// MarshalJSON encodes an unknown distance as null
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(d.Km)), nil
}

// UnmarshalJSON accepts a number, rounded to the nearest kilometer, or null.
// encoding/json never calls it for a null *Distance field, which decodes to a
// nil pointer rather than an unknown distance.
func (d *Distance) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Distance{}
		return nil
	}
	var km float64
	if err := json.Unmarshal(data, &km); err != nil {
		return err
	}
	*d = Distance{Km: int(math.Round(km)), Known: true}
	return nil
}
