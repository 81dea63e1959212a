// README: Passenger handlers for registration, profile, location and nearby drivers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/modules/passenger"
	"ridecore/internal/modules/ranking"
	"ridecore/internal/types"
)

type PassengerHandler struct {
	passengers *passenger.Service
	ranking    *ranking.Service
}

func NewPassengerHandler(passengers *passenger.Service, rankingSvc *ranking.Service) *PassengerHandler {
	return &PassengerHandler{passengers: passengers, ranking: rankingSvc}
}

type registerPassengerReq struct {
	UserID            string  `json:"user_id"`
	Name              string  `json:"name"`
	PhoneNumber       string  `json:"phone_number"`
	VehiclePreference string  `json:"vehicle_preference"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
}

func (h *PassengerHandler) Register(c *gin.Context) {
	var req registerPassengerReq
	if !bind(c, &req) {
		return
	}
	id, ok := actingAs(c, req.UserID)
	if !ok {
		return
	}
	p, err := h.passengers.Register(c.Request.Context(), passenger.RegisterCommand{
		PassengerID:       id,
		Name:              req.Name,
		PhoneNumber:       req.PhoneNumber,
		VehiclePreference: req.VehiclePreference,
		Lat:               req.Latitude,
		Lng:               req.Longitude,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"passenger": p})
}

type updatePassengerReq struct {
	Name              *string `json:"name"`
	PhoneNumber       *string `json:"phone_number"`
	VehiclePreference *string `json:"vehicle_preference"`
}

func (h *PassengerHandler) Update(c *gin.Context) {
	id, ok := actingAs(c, c.Param("id"))
	if !ok {
		return
	}
	var req updatePassengerReq
	if !bind(c, &req) {
		return
	}
	p, err := h.passengers.Update(c.Request.Context(), passenger.UpdateCommand{
		PassengerID:       id,
		Name:              req.Name,
		PhoneNumber:       req.PhoneNumber,
		VehiclePreference: req.VehiclePreference,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"passenger": p})
}

func (h *PassengerHandler) UpdateLocation(c *gin.Context) {
	id, ok := actingAs(c, c.Param("id"))
	if !ok {
		return
	}
	var req coords
	if !bind(c, &req) {
		return
	}
	loc, err := req.location()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.passengers.UpdateLocation(c.Request.Context(), id, loc.Lat, loc.Lng); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": id, "location": loc})
}

type nearbyReq struct {
	UserID            string   `json:"user_id"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Destination       *coords  `json:"destination"`
	VehiclePreference string   `json:"vehicle_preference"`
	RadiusKm          float64  `json:"radius_km"`
}

func (h *PassengerHandler) NearbyDrivers(c *gin.Context) {
	var req nearbyReq
	if !bind(c, &req) {
		return
	}
	if _, ok := actingAs(c, req.UserID); !ok {
		return
	}
	pickup, err := coords{Latitude: req.Latitude, Longitude: req.Longitude}.location()
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.RadiusKm < 0 {
		writeError(c, http.StatusBadRequest, "radius_km must not be negative")
		return
	}
	nr := ranking.NearbyRequest{Pickup: pickup, RadiusKm: req.RadiusKm}
	if req.Destination != nil {
		dest, err := req.Destination.location()
		if err != nil {
			writeError(c, http.StatusBadRequest, "destination: "+err.Error())
			return
		}
		nr.Destination = &dest
	}
	if req.VehiclePreference != "" {
		vt, err := types.ParseVehicleType(req.VehiclePreference)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		nr.VehicleType = vt
	}
	res, err := h.ranking.Nearby(c.Request.Context(), nr)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"drivers":  res.Drivers,
		"count":    len(res.Drivers),
		"trip":     res.Trip,
		"quote":    res.Quote,
		"degraded": res.Degraded,
	})
}
