package swagger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given the OpenAPI route on a router", t, func() {
		router := httprouter.New()
		Register(router)

		convey.Convey("Then /openapi.yaml serves the embedded document", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("The embedded document describes every API route", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)
		convey.So(err, convey.ShouldBeNil)
		convey.So(doc["openapi"], convey.ShouldEqual, "3.0.3")
		paths, ok := doc["paths"].(map[string]interface{})
		convey.So(ok, convey.ShouldBeTrue)
		for _, p := range []string{"/healthz", "/stats", "/api/leaderboard"} {
			convey.So(paths, convey.ShouldContainKey, p)
		}
	})
}

func TestRegisterWithNilRouter(t *testing.T) {
	convey.Convey("Registering on a nil router panics", t, func() {
		convey.So(func() { Register(nil) }, convey.ShouldPanic)
	})
}
