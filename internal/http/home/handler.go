// Package home serves the greeting endpoint.
package home

import (
	"context"

	"go.uber.org/zap"

	applog "github.com/example/demo/internal/platform/logging"
	"github.com/example/demo/internal/platform/respond"
)

const (
	// Path is the route the greeting is served on.
	Path = "/home"

	// Greeting is returned verbatim, without a trailing newline.
	Greeting = "Hello World!"
)

// Get returns the greeting. Query parameters and any request body are ignored.
func Get(ctx context.Context, _ *struct{}) (*respond.TextOutput, error) {
	applog.LogDebug(ctx, "home get", zap.String("path", Path))
	return respond.Text(Greeting), nil
}
