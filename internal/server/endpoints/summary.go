package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/metrics"
	"github.com/bgreenawald/non-fiction-book-writer/internal/svcctx"
)

// SummaryResponse wraps the run's metrics summary with a per-chapter
// breakdown.
type SummaryResponse struct {
	Total     metrics.Summary            `json:"total" yaml:"total"`
	ByChapter map[string]metrics.Summary `json:"by_chapter,omitempty" yaml:"by_chapter,omitempty"`
}

// SummaryEndpoint handles GET /api/metrics/summary.
type SummaryEndpoint struct{}

var _ api.Endpoint = (*SummaryEndpoint)(nil)

func (e *SummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

// handler godoc
//
//	@Summary		Metrics summary
//	@Description	Token and latency aggregates for this run, in total and per chapter
//	@Tags			metrics
//	@Produce		json
//	@Success		200	{object}	SummaryResponse
//	@Failure		503	{object}	api.ErrorResponse
//	@Router			/api/metrics/summary [get]
func (e *SummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	rec := svcctx.MetricsFrom(r.Context())
	if rec == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics not enabled")
		return
	}

	ms := rec.Metrics()
	writeJSON(w, http.StatusOK, SummaryResponse{
		Total:     metrics.Summarize(ms),
		ByChapter: metrics.ByChapter(ms),
	})
}

func (e *SummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show token and latency statistics for the running generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SummaryResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/api/metrics/summary", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
