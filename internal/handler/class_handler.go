package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tutoria-backend/internal/middleware"
	"github.com/stemsi/tutoria-backend/internal/model"
	"github.com/stemsi/tutoria-backend/internal/response"
	"github.com/stemsi/tutoria-backend/internal/service"
	"github.com/stemsi/tutoria-backend/internal/validator"
)

// ClassHandler handles class reads, cancellation and administrative management.
type ClassHandler struct {
	lifecycleService    *service.ClassLifecycleService
	availabilityService *service.AvailabilityService
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(lifecycleService *service.ClassLifecycleService, availabilityService *service.AvailabilityService) *ClassHandler {
	return &ClassHandler{
		lifecycleService:    lifecycleService,
		availabilityService: availabilityService,
	}
}

// GetClass godoc
// GET /api/v1/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	class, err := h.lifecycleService.GetClass(c.Request.Context(), classID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": class, "seats_free": class.SeatsFree()})
}

// GetAvailability godoc
// GET /api/v1/classes/:id/availability
// Returns an advisory seat snapshot. It may lag behind reservations in flight.
func (h *ClassHandler) GetAvailability(c *gin.Context) {
	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	availability, err := h.availabilityService.Get(c.Request.Context(), classID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"availability": availability})
}

// CancelClass godoc
// POST /api/v1/classes/:id/cancel
// Cancels a class. Admins may cancel any class; instructors only their own.
func (h *ClassHandler) CancelClass(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	class, err := h.lifecycleService.CancelClass(c.Request.Context(), classID, claims.ActorID, claims.Role)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"class": class})
}

// Roster godoc
// GET /api/v1/classes/:id/roster
// Lists every reservation of a class, including those of a cancelled class.
func (h *ClassHandler) Roster(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	roster, err := h.lifecycleService.Roster(c.Request.Context(), classID, claims.ActorID, claims.Role)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// ScheduleClass godoc
// POST /api/v1/admin/classes
func (h *ClassHandler) ScheduleClass(c *gin.Context) {
	var req model.ScheduleClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.lifecycleService.ScheduleClass(c.Request.Context(), &req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

// AssignLearners godoc
// POST /api/v1/admin/classes/:id/learners
// Reserves seats for several learners at once; all or nothing.
func (h *ClassHandler) AssignLearners(c *gin.Context) {
	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.AssignLearnersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reservations, err := h.lifecycleService.AssignLearners(c.Request.Context(), classID, req.LearnerIDs)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"reservations": reservations})
}

// PurgeClass godoc
// DELETE /api/v1/admin/classes/:id
// Deletes a class and every reservation it owns.
func (h *ClassHandler) PurgeClass(c *gin.Context) {
	classID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.lifecycleService.PurgeClass(c.Request.Context(), classID)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
