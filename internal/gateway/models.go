package gateway

import (
	"net/http"
	"sort"

	"github.com/relaygate/gateway/api"
)

// HandleListModels serves GET /v1/models, listing every canonical model the
// registry currently knows about.
func (g *Gateway) HandleListModels(w http.ResponseWriter, r *http.Request) {
	snap := g.registry.Current()
	models := make([]api.Model, 0, len(snap.Models))
	for id, m := range snap.Models {
		var created int64
		if m.ReleaseDate != nil {
			created = m.ReleaseDate.Unix()
		}
		models = append(models, api.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: "relaygate",
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	writeJSON(w, http.StatusOK, api.ModelListResponse{Object: "list", Data: models})
}

// HandleGetModel serves GET /v1/models/{id}.
func (g *Gateway) HandleGetModel(w http.ResponseWriter, r *http.Request, id string) {
	m, ok := g.registry.LookupCanonical(id)
	if !ok {
		writeError(w, g.logger, notFoundError(id))
		return
	}
	var created int64
	if m.ReleaseDate != nil {
		created = m.ReleaseDate.Unix()
	}
	writeJSON(w, http.StatusOK, api.Model{ID: m.ID, Object: "model", Created: created, OwnedBy: "relaygate"})
}
