// README: Trip lifecycle and dispatch endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type createTripReq struct {
	DriverID           string    `json:"driver_id"`
	OriginAddress      string    `json:"origin_address"`
	DestinationAddress string    `json:"destination_address"`
	Origin             pointBody `json:"origin"`
	Destination        pointBody `json:"destination"`
	DepartureTime      time.Time `json:"departure_time"`
	MaxSeats           int       `json:"max_seats"`
}

func (h *TripHandler) Create(c *gin.Context) {
	var req createTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.CreateTrip(c.Request.Context(), trip.CreateTripCommand{
		DriverID:           types.ID(req.DriverID),
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		Origin:             req.Origin.toPoint(),
		Destination:        req.Destination.toPoint(),
		DepartureTime:      req.DepartureTime,
		MaxSeats:           req.MaxSeats,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTripView(t))
}

func (h *TripHandler) Get(c *gin.Context) {
	t, err := h.trips.GetTrip(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripView(t))
}

type driverActionReq struct {
	DriverID string `json:"driver_id"`
}

func (h *TripHandler) Start(c *gin.Context) {
	var req driverActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.StartTrip(c.Request.Context(), trip.StartTripCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripView(t))
}

func (h *TripHandler) Depart(c *gin.Context) {
	var req driverActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.DepartTrip(c.Request.Context(), trip.DepartTripCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripView(t))
}

type cancelTripReq struct {
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason"`
}

func (h *TripHandler) Cancel(c *gin.Context) {
	var req cancelTripReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.CancelTrip(c.Request.Context(), trip.CancelTripCommand{
		TripID:   types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
		Reason:   req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripView(t))
}

type stopView struct {
	Type      string    `json:"type"`
	RequestID types.ID  `json:"request_id"`
	RiderID   types.ID  `json:"rider_id"`
	Location  pointBody `json:"location"`
}

func (h *TripHandler) CurrentStop(c *gin.Context) {
	stop, err := h.trips.CurrentStop(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if stop == nil {
		c.JSON(http.StatusOK, gin.H{"stop": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stopView{
		Type:      string(stop.Type),
		RequestID: stop.RequestID,
		RiderID:   stop.RiderID,
		Location:  pointView(stop.Location),
	}})
}

type advanceReq struct {
	DriverID  string `json:"driver_id"`
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
}

func (h *TripHandler) Advance(c *gin.Context) {
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	action := trip.StopType(req.Action)
	if action != trip.StopPickup && action != trip.StopDropoff {
		writeError(c, http.StatusBadRequest, "action must be pickup or dropoff")
		return
	}
	err := h.trips.Advance(c.Request.Context(), trip.AdvanceCommand{
		TripID:    types.ID(c.Param("id")),
		RequestID: types.ID(req.RequestID),
		Action:    action,
		DriverID:  types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	t, err := h.trips.GetTrip(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTripView(t))
}

func (h *TripHandler) ListRequests(c *gin.Context) {
	reqs, err := h.trips.ListRequests(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	views := make([]requestView, len(reqs))
	for i, r := range reqs {
		views[i] = newRequestView(r)
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}
