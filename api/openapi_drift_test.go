package api

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// documentedRoutes returns "METHOD /path" for every operation in openapi.yaml.
func documentedRoutes(t *testing.T) []string {
	t.Helper()
	var doc struct {
		Paths map[string]map[string]yaml.Node `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openapiSpec, &doc))

	var routes []string
	for path, ops := range doc.Paths {
		for method := range ops {
			if method == "parameters" || strings.HasPrefix(method, "x-") {
				continue
			}
			routes = append(routes, strings.ToUpper(method)+" "+path)
		}
	}
	slices.Sort(routes)
	return routes
}

// registeredRoutes walks the router. Building it never calls a handler, so a
// zero API is enough.
func registeredRoutes(t *testing.T) []string {
	t.Helper()
	var routes []string
	err := chi.Walk((&API{}).Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.TrimRight(route, "/")
		if route == "" {
			route = "/"
		}
		switch {
		case route == "/openapi.yaml",
			strings.HasPrefix(route, "/docs"),
			strings.HasPrefix(route, "/redoc"):
			return nil
		}
		routes = append(routes, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	slices.Sort(routes)
	return slices.Compact(routes)
}

func TestOpenAPIMatchesRouter(t *testing.T) {
	documented := documentedRoutes(t)
	registered := registeredRoutes(t)
	require.NotEmpty(t, registered)

	for _, r := range registered {
		assert.Contains(t, documented, r, "route missing from openapi.yaml")
	}
	for _, r := range documented {
		assert.Contains(t, registered, r, "openapi.yaml documents an unregistered route")
	}
}
