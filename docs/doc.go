// Package docs holds the OpenAPI general info for the monitor server that
// `bookwriter generate --metrics-addr` starts. Handler annotations live in
// internal/server/endpoints.
//
// Bookwriter Monitor API
//
//	@title			Bookwriter Monitor API
//	@version		1.0
//	@description	Read-only progress and metrics for a running book generation.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		127.0.0.1:9464
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../docs/doc.go -d ../internal/server/endpoints,../internal/api -o ./swagger --parseDependency --parseInternal
