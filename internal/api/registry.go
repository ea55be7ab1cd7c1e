package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
func (r *Registry) RegisterRoutes(mux *http.ServeMux) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command grouping a CLI command per
// registered endpoint. getServerURL is called at runtime to get the server
// URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Query a running generation over HTTP",
		Long: `Remote commands call the monitor server of a running generation.

Start one with: bookwriter generate <dir> --metrics-addr 127.0.0.1:9464
Use --server to point at it.

Examples:
  bookwriter remote health
  bookwriter remote status
  bookwriter remote summary`,
	}

	for _, ep := range r.endpoints {
		remoteCmd.AddCommand(ep.Command(getServerURL))
	}

	return remoteCmd
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
