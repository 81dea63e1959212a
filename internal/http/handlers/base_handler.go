// README: Base handler utilities (JSON helpers, error mapping, caller checks).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/http/middleware"
	"ridecore/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// coords is the latitude/longitude pair used by request bodies.
type coords struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p coords) location() (types.Location, error) {
	if p.Latitude == nil || p.Longitude == nil {
		return types.Location{}, errors.New("latitude and longitude are required")
	}
	return types.Location{Lat: *p.Latitude, Lng: *p.Longitude}, nil
}

// isValidID accepts the alphanumeric ids used by clients plus '_' and '-'.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrInvalidTransition), errors.Is(err, types.ErrInvalidState), errors.Is(err, types.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrUpstreamUnavailable):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// bind decodes the JSON body and writes 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

// actingAs resolves the acting user id. An empty requested id falls back to
// the authenticated caller; a mismatch with the caller is rejected with 403.
func actingAs(c *gin.Context, requested string) (types.ID, bool) {
	uid := middleware.CallerUID(c)
	if requested == "" {
		requested = uid
	}
	if !isValidID(requested) {
		writeError(c, http.StatusBadRequest, "missing or invalid user id")
		return "", false
	}
	if middleware.Authenticated(c) && requested != uid {
		writeError(c, http.StatusForbidden, "caller does not match acting user")
		return "", false
	}
	return types.ID(requested), true
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	id := c.Param(name)
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing or invalid "+name)
		return "", false
	}
	return types.ID(id), true
}
