// README: Match search endpoint.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"unipool/internal/modules/matching"
)

type MatchHandler struct {
	matches *matching.Service
}

func NewMatchHandler(svc *matching.Service) *MatchHandler {
	return &MatchHandler{matches: svc}
}

type matchReq struct {
	Origin         pointBody `json:"origin"`
	Destination    pointBody `json:"destination"`
	DesiredArrival time.Time `json:"desired_arrival"`
	MaxOccupancy   int       `json:"max_occupancy"`
	Preference     string    `json:"preference"`
}

func (h *MatchHandler) Find(c *gin.Context) {
	var req matchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.MaxOccupancy == 0 {
		req.MaxOccupancy = 1
	}
	results, err := h.matches.FindMatches(c.Request.Context(), matching.Query{
		Origin:         req.Origin.toPoint(),
		Destination:    req.Destination.toPoint(),
		DesiredArrival: req.DesiredArrival,
		MaxOccupancy:   req.MaxOccupancy,
		Preference:     matching.Preference(req.Preference),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": results})
}
