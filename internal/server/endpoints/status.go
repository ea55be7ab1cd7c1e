package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bgreenawald/non-fiction-book-writer/internal/api"
	"github.com/bgreenawald/non-fiction-book-writer/internal/state"
	"github.com/bgreenawald/non-fiction-book-writer/internal/svcctx"
)

// ChapterStatus is one chapter's line in a status response.
type ChapterStatus struct {
	ChapterID string                `json:"chapter_id" yaml:"chapter_id"`
	Status    state.ChapterStatus   `json:"status" yaml:"status"`
	Progress  state.ChapterProgress `json:"progress" yaml:"progress"`
}

// StatusResponse reports overall and per-chapter progress.
type StatusResponse struct {
	Model    string                `json:"model" yaml:"model"`
	Percent  float64               `json:"percent" yaml:"percent"`
	Overall  state.OverallProgress `json:"overall" yaml:"overall"`
	Chapters []ChapterStatus       `json:"chapters" yaml:"chapters"`
}

// BuildStatus summarizes st; chapters are listed in book order.
func BuildStatus(st *state.BookState) StatusResponse {
	overall := state.GetOverallProgress(st)
	resp := StatusResponse{
		Model:   st.Model,
		Percent: overall.Percent(),
		Overall: overall,
	}
	for _, id := range state.SortedChapterIDs(st) {
		ch, _ := st.Chapter(id)
		resp.Chapters = append(resp.Chapters, ChapterStatus{
			ChapterID: id,
			Status:    ch.Status,
			Progress:  state.GetChapterProgress(st, id),
		})
	}
	return resp
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

// handler godoc
//
//	@Summary		Generation progress
//	@Description	Overall and per-chapter section counts read from the state file
//	@Tags			monitor
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Failure		404	{object}	api.ErrorResponse
//	@Failure		500	{object}	api.ErrorResponse
//	@Failure		503	{object}	api.ErrorResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "state store not available")
		return
	}

	st, err := store.Load(r.Context())
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("status: load state", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "no generation state yet")
		return
	}

	writeJSON(w, http.StatusOK, BuildStatus(st))
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show progress of the running generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp StatusResponse
			if err := api.NewClient(getServerURL()).Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
