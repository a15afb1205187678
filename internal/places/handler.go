package places

import (
	"net/http"
	"strconv"

	"github.com/tablemate/tablemate-server/internal/api"
	"github.com/tablemate/tablemate-server/internal/appctx"
)

// Handler exposes the nearby restaurant search.
type Handler struct {
	provider Provider
}

// NewHandler creates the places handler.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// HandleNearby handles GET /api/restaurants/nearby.
func (h *Handler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		api.WriteBadRequest(w, api.ReasonMissingField, "lat and lng are required")
		return
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		api.WriteBadRequest(w, api.ReasonInvalidField, "lat/lng out of range")
		return
	}

	q := Query{Lat: lat, Lng: lng, Cuisine: query.Get("cuisine")}
	if v := query.Get("radius"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			api.WriteBadRequest(w, api.ReasonInvalidField, "radius must be a positive integer")
			return
		}
		q.RadiusMeters = n
	}

	results, err := h.provider.Nearby(r.Context(), q)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("nearby search failed", "lat", lat, "lng", lng, "error", err)
		api.WriteError(w, http.StatusBadGateway, api.ReasonUpstreamError, "restaurant search unavailable")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"restaurants": results})
}
