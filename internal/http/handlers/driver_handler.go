// README: Driver handlers for registration, availability, location and ride actions.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/types"
)

type DriverHandler struct {
	drivers  *driver.Service
	bookings *booking.Service
}

func NewDriverHandler(drivers *driver.Service, bookings *booking.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, bookings: bookings}
}

type registerDriverReq struct {
	DriverID      string `json:"driver_id"`
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
	VehicleType   string `json:"vehicle_type"`
	VehicleNumber string `json:"vehicle_number"`
}

func (h *DriverHandler) Register(c *gin.Context) {
	var req registerDriverReq
	if !bind(c, &req) {
		return
	}
	id, ok := actingAs(c, req.DriverID)
	if !ok {
		return
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.RegisterCommand{
		DriverID:      id,
		Name:          req.Name,
		PhoneNumber:   req.PhoneNumber,
		VehicleType:   req.VehicleType,
		VehicleNumber: req.VehicleNumber,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"driver": d})
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	id, ok := actingAs(c, c.Param("id"))
	if !ok {
		return
	}
	var req availabilityReq
	if !bind(c, &req) {
		return
	}
	if req.IsAvailable == nil {
		writeError(c, http.StatusBadRequest, "is_available is required")
		return
	}
	d, err := h.drivers.SetAvailability(c.Request.Context(), id, *req.IsAvailable)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver": d})
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
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
	if err := h.drivers.UpdateLocation(c.Request.Context(), id, loc.Lat, loc.Lng); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "location": loc})
}

// Status returns the driver together with the current active booking.
func (h *DriverHandler) Status(c *gin.Context) {
	id, ok := actingAs(c, c.Param("id"))
	if !ok {
		return
	}
	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	active, err := h.bookings.ActiveForDriver(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver": d, "active_booking": active})
}

func (h *DriverHandler) Bookings(c *gin.Context) {
	id, ok := actingAs(c, c.Param("id"))
	if !ok {
		return
	}
	var status booking.Status
	if raw := c.Query("status"); raw != "" {
		s, err := booking.ParseStatus(strings.ToLower(raw))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		status = s
	}
	list, err := h.bookings.ListForDriver(c.Request.Context(), id, status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []booking.Booking{}
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

type driverActionReq struct {
	DriverID         string   `json:"driver_id"`
	DropoffLatitude  *float64 `json:"dropoff_latitude"`
	DropoffLongitude *float64 `json:"dropoff_longitude"`
}

func (h *DriverHandler) Accept(c *gin.Context) {
	id, _, driverID, ok := h.driverAction(c)
	if !ok {
		return
	}
	b, err := h.bookings.DriverAccept(c.Request.Context(), booking.AcceptCommand{BookingID: id, DriverID: driverID})
	h.respond(c, b, err)
}

func (h *DriverHandler) Start(c *gin.Context) {
	id, _, driverID, ok := h.driverAction(c)
	if !ok {
		return
	}
	b, err := h.bookings.Start(c.Request.Context(), booking.StartCommand{BookingID: id, DriverID: driverID})
	h.respond(c, b, err)
}

func (h *DriverHandler) Complete(c *gin.Context) {
	id, req, driverID, ok := h.driverAction(c)
	if !ok {
		return
	}
	cmd := booking.CompleteCommand{BookingID: id, DriverID: driverID}
	if req.DropoffLatitude != nil || req.DropoffLongitude != nil {
		dropoff, err := coords{Latitude: req.DropoffLatitude, Longitude: req.DropoffLongitude}.location()
		if err != nil {
			writeError(c, http.StatusBadRequest, "dropoff: "+err.Error())
			return
		}
		cmd.Dropoff = &dropoff
	}
	b, err := h.bookings.Complete(c.Request.Context(), cmd)
	h.respond(c, b, err)
}

func (h *DriverHandler) Cancel(c *gin.Context) {
	id, _, driverID, ok := h.driverAction(c)
	if !ok {
		return
	}
	b, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: id,
		ActorType: booking.ActorDriver,
		ActorID:   driverID,
	})
	h.respond(c, b, err)
}

func (h *DriverHandler) driverAction(c *gin.Context) (types.ID, driverActionReq, types.ID, bool) {
	var req driverActionReq
	id, ok := pathID(c, "id")
	if !ok {
		return "", req, "", false
	}
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return "", req, "", false
	}
	driverID, ok := actingAs(c, req.DriverID)
	if !ok {
		return "", req, "", false
	}
	return id, req, driverID, true
}

func (h *DriverHandler) respond(c *gin.Context, b *booking.Booking, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}
