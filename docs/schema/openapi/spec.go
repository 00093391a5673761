// Package openapi embeds the OpenAPI description of the squadd HTTP API.
package openapi

import _ "embed"

// SquaddSpec is the OpenAPI 3 document served by squadd at /api/v1/openapi.yaml.
//
//go:embed squadd.yaml
var SquaddSpec []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), SquaddSpec...)
}
