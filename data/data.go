// Package data embeds the default reference datasets. Both can be replaced at
// runtime through configuration.
package data

import _ "embed"

//go:embed cities.yaml
var Cities []byte

//go:embed doctors.yaml
var Doctors []byte
