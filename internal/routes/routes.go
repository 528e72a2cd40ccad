// Package routes holds the application's route table and registers it with huma.
package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/example/demo/internal/http/home"
	"github.com/example/demo/internal/platform/respond"
)

// Route maps a method and path to a handler producing a plain-text response.
type Route struct {
	OperationID string
	Method      string
	Path        string
	Summary     string
	Handler     func(ctx context.Context, input *struct{}) (*respond.TextOutput, error)
}

// Table returns the routes served by the application.
func Table() []Route {
	return []Route{
		{
			OperationID: "get-home",
			Method:      http.MethodGet,
			Path:        home.Path,
			Summary:     "Get the greeting",
			Handler:     home.Get,
		},
	}
}

// Register wires each route into api. Responses are documented as text/plain.
func Register(api huma.API, routes ...Route) {
	for _, r := range routes {
		huma.Register(api, huma.Operation{
			OperationID: r.OperationID,
			Method:      r.Method,
			Path:        r.Path,
			Summary:     r.Summary,
			Responses: map[string]*huma.Response{
				"200": {
					Description: http.StatusText(http.StatusOK),
					Content: map[string]*huma.MediaType{
						"text/plain": {Schema: &huma.Schema{Type: huma.TypeString}},
					},
				},
			},
		}, r.Handler)
	}
}
