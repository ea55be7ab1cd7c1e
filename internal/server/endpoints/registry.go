package endpoints

import (
	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
)

// All returns all endpoint instances for registration.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&StatusEndpoint{},
		&SummaryEndpoint{},
	}
}
