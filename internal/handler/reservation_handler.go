package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutoria-backend/internal/middleware"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/response"
	"github.com/stemsi/tutoria-backend/internal/service"
	"github.com/stemsi/tutoria-backend/internal/validator"
)

// ReservationHandler handles guardian-facing seat reservations.
type ReservationHandler struct {
	reservationService *service.ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(reservationService *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// ReserveSeat godoc
// POST /api/v1/classes/:id/reservations
// Reserves one seat for a learner of the calling guardian.
func (h *ReservationHandler) ReserveSeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.ReserveSeatRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var note *string
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = &trimmed
	}

	reservation, err := h.reservationService.ReserveSeat(c.Request.Context(), classID, claims.ActorID, req.LearnerID, note)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"reservation": reservation})
}

// ReleaseSeat godoc
// DELETE /api/v1/reservations/:id
// Releases a reservation made by the calling guardian.
func (h *ReservationHandler) ReleaseSeat(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reservationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	confirmation, err := h.reservationService.ReleaseSeat(c.Request.Context(), reservationID, claims.ActorID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"release": confirmation})
}
