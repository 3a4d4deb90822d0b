package api

import (
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// TestOpenAPIDrift keeps openapi.yaml honest: every route registered on the
// router must appear in the embedded document, and vice versa.
func TestOpenAPIDrift(t *testing.T) {
	documented := documentedRoutes(t)
	registered := registeredRoutes(t)

	var missing, stale []string
	for route := range registered {
		if !documented[route] {
			missing = append(missing, route)
		}
	}
	for route := range documented {
		if !registered[route] {
			stale = append(stale, route)
		}
	}
	sort.Strings(missing)
	sort.Strings(stale)

	if len(missing) > 0 {
		t.Errorf("routes registered but absent from openapi.yaml: %s", strings.Join(missing, ", "))
	}
	if len(stale) > 0 {
		t.Errorf("routes in openapi.yaml but never registered: %s", strings.Join(stale, ", "))
	}
}

// documentedRoutes extracts "METHOD /path" pairs from the embedded document.
func documentedRoutes(t *testing.T) map[string]bool {
	t.Helper()

	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(openapiSpec, &doc); err != nil {
		t.Fatalf("parse openapi.yaml: %v", err)
	}

	routes := make(map[string]bool)
	for path, ops := range doc.Paths {
		for key := range ops {
			// Path items also hold non-operation keys such as
			// "parameters" and x- extensions.
			switch strings.ToLower(key) {
			case "get", "put", "post", "delete", "options", "head", "patch", "trace":
				routes[strings.ToUpper(key)+" "+path] = true
			}
		}
	}
	return routes
}

// registeredRoutes walks a zero-value API's router. Router() only wires
// handlers, it never calls them, so nil dependencies are safe here.
func registeredRoutes(t *testing.T) map[string]bool {
	t.Helper()

	a := &API{}
	routes := make(map[string]bool)
	err := chi.Walk(a.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.TrimRight(route, "/")
		if route == "" {
			route = "/"
		}
		// Doc-serving routes are not part of the API contract.
		if route == "/openapi.yaml" || strings.HasPrefix(route, "/docs") || strings.HasPrefix(route, "/redoc") {
			return nil
		}
		routes[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk router: %v", err)
	}
	return routes
}
