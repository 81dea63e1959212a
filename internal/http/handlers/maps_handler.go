// README: Directions proxy handler.
package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/maps"
	"ridecore/internal/types"
)

// Router resolves driving routes. *maps.RouteService implements it.
type Router interface {
	Directions(ctx context.Context, origin, destination types.Location) (maps.Route, error)
}

type MapsHandler struct {
	routes Router
}

// NewMapsHandler accepts a nil router; Directions then answers 503.
func NewMapsHandler(routes Router) *MapsHandler {
	return &MapsHandler{routes: routes}
}

// directionsReq carries GeoJSON-ordered [lng, lat] pairs; the first is the
// origin and the last the destination.
type directionsReq struct {
	Coordinates [][]float64 `json:"coordinates"`
}

func (h *MapsHandler) Directions(c *gin.Context) {
	var req directionsReq
	if !bind(c, &req) {
		return
	}
	if len(req.Coordinates) < 2 {
		writeError(c, http.StatusBadRequest, "at least two coordinates are required")
		return
	}
	points := make([]types.Location, 0, 2)
	for _, i := range []int{0, len(req.Coordinates) - 1} {
		pair := req.Coordinates[i]
		if len(pair) != 2 {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("coordinate %d must be [longitude, latitude]", i))
			return
		}
		loc := types.Location{Lat: pair[1], Lng: pair[0]}
		if err := loc.Validate(); err != nil {
			writeServiceError(c, err)
			return
		}
		points = append(points, loc)
	}
	if h.routes == nil {
		writeServiceError(c, fmt.Errorf("%w: directions provider not configured", types.ErrUpstreamUnavailable))
		return
	}
	route, err := h.routes.Directions(c.Request.Context(), points[0], points[1])
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, route)
}
