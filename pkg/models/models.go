package models

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lng" yaml:"lng"`
}

// City is a named location from the reference city dataset
type City struct {
	Name     string `json:"name" yaml:"name"`
	Location `yaml:",inline"`
}
