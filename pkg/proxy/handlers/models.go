package handlers

import (
	"net/http"
	"time"

	"corvus-hq/rookery/pkg/proxy"
	"corvus-hq/rookery/pkg/proxy/types"
)

// defaultModelIDs is the static listing served when no override is
// configured. OpenAI SDKs probe /v1/models before first use.
var defaultModelIDs = []string{
	"grok-4",
	"grok-3",
	"grok-3-mini",
}

// ModelsHandler serves GET /v1/models with a static model listing.
type ModelsHandler struct {
	models  []string
	created int64
}

// NewModelsHandler builds the models listing handler. An empty ids slice
// falls back to the built-in list.
func NewModelsHandler(ids []string) *ModelsHandler {
	if len(ids) == 0 {
		ids = defaultModelIDs
	}
	return &ModelsHandler{models: ids, created: time.Now().Unix()}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list := types.ModelList{Object: "list", Data: make([]types.Model, 0, len(h.models))}
	for _, id := range h.models {
		list.Data = append(list.Data, types.Model{
			ID:      id,
			Object:  "model",
			Created: h.created,
			OwnedBy: "xai",
		})
	}
	_ = proxy.WriteJSON(w, http.StatusOK, list)
}
