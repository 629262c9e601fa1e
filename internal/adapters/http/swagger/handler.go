// Package swagger serves the OpenAPI description of the operational API.
package swagger

import (
	_ "embed"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// OpenAPI contains the embedded OpenAPI YAML specification.
//
//go:embed openapi.yaml
var OpenAPI []byte

// Register attaches GET /openapi.yaml to router.
func Register(router *httprouter.Router) {
	if router == nil {
		panic("router is nil")
	}
	router.HandlerFunc(http.MethodGet, "/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}
