// README: Booking handlers for the passenger side of the lifecycle.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridecore/internal/http/middleware"
	"ridecore/internal/modules/booking"
	"ridecore/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
}

func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type createBookingReq struct {
	UserID            string   `json:"user_id"`
	DriverID          string   `json:"driver_id"`
	PickupLatitude    *float64 `json:"pickup_latitude"`
	PickupLongitude   *float64 `json:"pickup_longitude"`
	DropoffLatitude   *float64 `json:"dropoff_latitude"`
	DropoffLongitude  *float64 `json:"dropoff_longitude"`
	VehiclePreference string   `json:"vehicle_preference"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if !bind(c, &req) {
		return
	}
	passengerID, ok := actingAs(c, req.UserID)
	if !ok {
		return
	}
	if !isValidID(req.DriverID) {
		writeError(c, http.StatusBadRequest, "missing or invalid driver_id")
		return
	}
	pickup, err := coords{Latitude: req.PickupLatitude, Longitude: req.PickupLongitude}.location()
	if err != nil {
		writeError(c, http.StatusBadRequest, "pickup: "+err.Error())
		return
	}
	cmd := booking.CreateCommand{
		PassengerID: passengerID,
		DriverID:    types.ID(req.DriverID),
		Pickup:      pickup,
	}
	if req.DropoffLatitude != nil || req.DropoffLongitude != nil {
		dropoff, err := coords{Latitude: req.DropoffLatitude, Longitude: req.DropoffLongitude}.location()
		if err != nil {
			writeError(c, http.StatusBadRequest, "dropoff: "+err.Error())
			return
		}
		cmd.Dropoff = &dropoff
	}
	if req.VehiclePreference != "" {
		vt, err := types.ParseVehicleType(req.VehiclePreference)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		cmd.VehicleType = vt
	}
	b, err := h.bookings.Create(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"booking": b})
}

// Get returns a booking to its passenger or its driver.
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !canView(c, b) {
		writeError(c, http.StatusForbidden, "caller is not a party to this booking")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}

func (h *BookingHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !canView(c, b) {
		writeError(c, http.StatusForbidden, "caller is not a party to this booking")
		return
	}
	events, err := h.bookings.Events(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events, "count": len(events)})
}

type passengerActionReq struct {
	UserID string `json:"user_id"`
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	id, passengerID, ok := h.passengerAction(c)
	if !ok {
		return
	}
	b, err := h.bookings.PassengerConfirm(c.Request.Context(), booking.ConfirmCommand{BookingID: id, PassengerID: passengerID})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	id, passengerID, ok := h.passengerAction(c)
	if !ok {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		ActorType: booking.ActorPassenger,
		ActorID:   passengerID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}

func (h *BookingHandler) passengerAction(c *gin.Context) (types.ID, types.ID, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return "", "", false
	}
	var req passengerActionReq
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return "", "", false
	}
	passengerID, ok := actingAs(c, req.UserID)
	if !ok {
		return "", "", false
	}
	return id, passengerID, true
}

func canView(c *gin.Context, b *booking.Booking) bool {
	if !middleware.Authenticated(c) {
		return true
	}
	uid := types.ID(middleware.CallerUID(c))
	return b.PassengerID == uid || b.AssignedTo(uid)
}
