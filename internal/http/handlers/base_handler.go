// README: Shared JSON helpers and domain-error to status mapping.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/modules/matching"
	"unipool/internal/modules/trip"
	"unipool/internal/routing"
	"unipool/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

// writeDomainError maps service errors onto HTTP statuses. Conflicts deliberately
// carry the sentinel's message so clients can tell "seats full" from "already
// cancelled" without parsing status codes.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trip.ErrBadRequest), errors.Is(err, matching.ErrInvalidInput):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, trip.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, trip.ErrDuplicateRequest),
		errors.Is(err, trip.ErrSeatsFull),
		errors.Is(err, trip.ErrAlreadyCancelled),
		errors.Is(err, trip.ErrRiderNotConfirmed),
		errors.Is(err, trip.ErrTooEarly),
		errors.Is(err, trip.ErrInvalidTransition),
		errors.Is(err, trip.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, routing.ErrRouteComputation):
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type pointBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p pointBody) toPoint() types.Point {
	return types.Point{Lat: p.Lat, Lng: p.Lng}
}

func pointView(p types.Point) pointBody {
	return pointBody{Lat: p.Lat, Lng: p.Lng}
}

type tripView struct {
	ID                 types.ID   `json:"id"`
	DriverID           types.ID   `json:"driver_id"`
	OriginAddress      string     `json:"origin_address,omitempty"`
	DestinationAddress string     `json:"destination_address,omitempty"`
	Origin             pointBody  `json:"origin"`
	Destination        pointBody  `json:"destination"`
	DepartureTime      time.Time  `json:"departure_time"`
	MaxSeats           int        `json:"max_seats"`
	BookedSeats        int        `json:"booked_seats"`
	SeatsLeft          int        `json:"seats_left"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

func newTripView(t *trip.Trip) tripView {
	return tripView{
		ID:                 t.ID,
		DriverID:           t.DriverID,
		OriginAddress:      t.OriginAddress,
		DestinationAddress: t.DestinationAddress,
		Origin:             pointView(t.Origin),
		Destination:        pointView(t.Destination),
		DepartureTime:      t.DepartureTime,
		MaxSeats:           t.MaxSeats,
		BookedSeats:        t.BookedSeats,
		SeatsLeft:          t.SeatsLeft(),
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt,
		CompletedAt:        t.CompletedAt,
		CancelledAt:        t.CancelledAt,
	}
}

type requestView struct {
	ID                     types.ID   `json:"id"`
	TripID                 types.ID   `json:"trip_id"`
	RiderID                types.ID   `json:"rider_id"`
	Pickup                 pointBody  `json:"pickup"`
	Dropoff                *pointBody `json:"dropoff,omitempty"`
	Status                 string     `json:"status"`
	FareCents              int64      `json:"fare_cents"`
	FareCurrency           string     `json:"fare_currency,omitempty"`
	RiderPickupConfirmedAt *time.Time `json:"rider_pickup_confirmed_at,omitempty"`
	AcceptedAt             *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt             *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	CancelledAt            *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

func newRequestView(r *trip.TripRequest) requestView {
	v := requestView{
		ID:                     r.ID,
		TripID:                 r.TripID,
		RiderID:                r.RiderID,
		Pickup:                 pointView(r.Pickup),
		Status:                 string(r.Status),
		FareCents:              r.Fare.Amount,
		FareCurrency:           r.Fare.Currency,
		RiderPickupConfirmedAt: r.RiderPickupConfirmedAt,
		AcceptedAt:             r.AcceptedAt,
		PickedUpAt:             r.PickedUpAt,
		CompletedAt:            r.CompletedAt,
		CancelledAt:            r.CancelledAt,
		CreatedAt:              r.CreatedAt,
	}
	if r.Dropoff != nil {
		p := pointView(*r.Dropoff)
		v.Dropoff = &p
	}
	return v
}
