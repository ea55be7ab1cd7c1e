package main

import (
	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All() {
		registry.Register(ep)
	}

	remoteCmd := registry.BuildCommands(getServerURL)
	remoteCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://127.0.0.1:9464", "monitor server URL",
	)
	rootCmd.AddCommand(remoteCmd)
}
