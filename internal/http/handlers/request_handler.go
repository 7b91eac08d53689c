// README: Seat request endpoints (file, accept, reject, cancel, confirm).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"unipool/internal/modules/trip"
	"unipool/internal/types"
)

type RequestHandler struct {
	trips *trip.Service
}

func NewRequestHandler(svc *trip.Service) *RequestHandler {
	return &RequestHandler{trips: svc}
}

type createRequestReq struct {
	RiderID string     `json:"rider_id"`
	Pickup  pointBody  `json:"pickup"`
	Dropoff *pointBody `json:"dropoff"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := trip.RequestSeatCommand{
		TripID:  types.ID(c.Param("id")),
		RiderID: types.ID(req.RiderID),
		Pickup:  req.Pickup.toPoint(),
	}
	if req.Dropoff != nil {
		p := req.Dropoff.toPoint()
		cmd.Dropoff = &p
	}
	r, err := h.trips.RequestSeat(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRequestView(r))
}

func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.trips.GetRequest(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Accept(c *gin.Context) {
	var req driverActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.trips.AcceptRequest(c.Request.Context(), trip.AcceptCommand{
		RequestID: types.ID(c.Param("id")),
		DriverID:  types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Reject(c *gin.Context) {
	var req driverActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.trips.RejectRequest(c.Request.Context(), trip.RejectCommand{
		RequestID: types.ID(c.Param("id")),
		DriverID:  types.ID(req.DriverID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestView(r))
}

type cancelRequestReq struct {
	ActorID   string `json:"actor_id"`
	ActorType string `json:"actor_type"`
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	var req cancelRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActorType != "rider" && req.ActorType != "driver" {
		writeError(c, http.StatusBadRequest, "actor_type must be rider or driver")
		return
	}
	r, err := h.trips.CancelRequest(c.Request.Context(), trip.CancelRequestCommand{
		RequestID: types.ID(c.Param("id")),
		ActorID:   types.ID(req.ActorID),
		ActorType: req.ActorType,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestView(r))
}

type confirmPickupReq struct {
	RiderID string `json:"rider_id"`
}

func (h *RequestHandler) ConfirmPickup(c *gin.Context) {
	var req confirmPickupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.trips.ConfirmPickup(c.Request.Context(), trip.ConfirmPickupCommand{
		RequestID: types.ID(c.Param("id")),
		RiderID:   types.ID(req.RiderID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRequestView(r))
}
