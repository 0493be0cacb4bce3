// Package kit holds small transport-agnostic building blocks shared by the
// HTTP and MCP surfaces: the Endpoint abstraction and middleware chaining.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Transports (HTTP
// handlers, MCP tools) decode into a typed request, invoke the endpoint,
// and encode the response.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first listed runs outermost.
func Chain(e Endpoint, mws ...Middleware) Endpoint {
	for i := len(mws) - 1; i >= 0; i-- {
		e = mws[i](e)
	}
	return e
}
