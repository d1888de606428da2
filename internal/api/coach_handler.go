// internal/api/coach_handler.go
package api

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/service"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive" // For converting ID strings
)

// CoachHandler holds the coach service dependency.
type CoachHandler struct {
	coachService service.CoachService
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(coachService service.CoachService) *CoachHandler {
	return &CoachHandler{coachService: coachService}
}

// --- Request Structs ---

type AddMenteeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PlannedWorkoutRequest mirrors domain.PlannedWorkout for JSON binding.
type PlannedWorkoutRequest struct {
	Type          string   `json:"type"`
	DistanceKm    *float64 `json:"distanceKm,omitempty"`
	DurationMin   *float64 `json:"durationMin,omitempty"`
	Pace          string   `json:"pace,omitempty"`
	PreferredTime string   `json:"preferredTime,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type CreatePlanRequest struct {
	Name      string                           `json:"name"`
	WeekStart time.Time                        `json:"weekStart" binding:"required"`
	Workouts  map[string]PlannedWorkoutRequest `json:"workouts"`
}

type UpdateWorkoutsRequest struct {
	Workouts map[string]PlannedWorkoutRequest `json:"workouts" binding:"required"`
}

type ManualMatchRequest struct {
	ActivityID int64  `json:"activityId" binding:"required"`
	WorkoutDay string `json:"workoutDay" binding:"required"`
}

// --- Handler Methods ---

// AddMenteeByEmail links an existing mentee account to the calling coach.
func (h *CoachHandler) AddMenteeByEmail(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	var req AddMenteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	mentee, err := h.coachService.AddMenteeByEmail(c.Request.Context(), coachID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenteeNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrUserNotMentee):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to add mentee")
		}
		return
	}

	c.JSON(http.StatusOK, MapUserToResponse(mentee))
}

// GetManagedMentees lists the calling coach's mentees.
func (h *CoachHandler) GetManagedMentees(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	mentees, err := h.coachService.GetManagedMentees(c.Request.Context(), coachID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch mentees")
		return
	}

	responses := make([]UserResponse, 0, len(mentees))
	for i := range mentees {
		responses = append(responses, MapUserToResponse(&mentees[i]))
	}
	c.JSON(http.StatusOK, responses)
}

// GetSyncArchives lists a mentee's archived raw sync payloads, each
// with a presigned download URL.
func (h *CoachHandler) GetSyncArchives(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	menteeID, ok := objectIDParam(c, "menteeId")
	if !ok {
		return
	}

	archives, err := h.coachService.GetSyncArchives(c.Request.Context(), coachID, menteeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenteeNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrMenteeNotManaged), errors.Is(err, service.ErrUserNotMentee):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to list sync archives")
		}
		return
	}
	c.JSON(http.StatusOK, archives)
}

// CreateTrainingPlan creates one weekly plan for a mentee.
func (h *CoachHandler) CreateTrainingPlan(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	menteeID, ok := objectIDParam(c, "menteeId")
	if !ok {
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	plan, err := h.coachService.CreateWeeklyPlan(c.Request.Context(), coachID, menteeID, req.Name, req.WeekStart, mapWorkoutsRequest(req.Workouts))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenteeNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrMenteeNotManaged), errors.Is(err, service.ErrUserNotMentee):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrWeekStartNotMonday),
			errors.Is(err, service.ErrInvalidWorkoutDay),
			errors.Is(err, service.ErrInvalidPreferredTime):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create plan")
		}
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// GetTrainingPlansForMentee lists the coach's plans for one mentee.
func (h *CoachHandler) GetTrainingPlansForMentee(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	menteeID, ok := objectIDParam(c, "menteeId")
	if !ok {
		return
	}

	plans, err := h.coachService.GetPlansForMentee(c.Request.Context(), coachID, menteeID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch plans")
		return
	}
	c.JSON(http.StatusOK, plans)
}

// UpdatePlanWorkouts replaces a plan's workouts and triggers a rematch.
func (h *CoachHandler) UpdatePlanWorkouts(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	var req UpdateWorkoutsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	plan, err := h.coachService.UpdatePlanWorkouts(c.Request.Context(), coachID, planID, mapWorkoutsRequest(req.Workouts))
	if err != nil {
		h.abortPlanError(c, err, "Failed to update plan workouts")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// DeletePlan removes a plan and its matches.
func (h *CoachHandler) DeletePlan(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	if err := h.coachService.DeletePlan(c.Request.Context(), coachID, planID); err != nil {
		h.abortPlanError(c, err, "Failed to delete plan")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPlanMatches returns a plan together with its match rows.
func (h *CoachHandler) GetPlanMatches(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	result, err := h.coachService.GetPlanWithMatches(c.Request.Context(), coachID, planID)
	if err != nil {
		h.abortPlanError(c, err, "Failed to fetch plan matches")
		return
	}
	c.JSON(http.StatusOK, result)
}

// ManualMatch pins an activity to a plan day.
func (h *CoachHandler) ManualMatch(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	var req ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if err := h.coachService.ManualMatch(c.Request.Context(), coachID, req.ActivityID, planID, req.WorkoutDay); err != nil {
		if errors.Is(err, service.ErrInvalidWeekday) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.abortPlanError(c, err, "Failed to create manual match")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveMatch deletes one match row.
func (h *CoachHandler) RemoveMatch(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	activityID, err := strconv.ParseInt(c.Param("activityId"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid activity ID")
		return
	}

	if err := h.coachService.RemoveMatch(c.Request.Context(), coachID, activityID, planID); err != nil {
		h.abortPlanError(c, err, "Failed to remove match")
		return
	}
	c.Status(http.StatusNoContent)
}

// RematchPlan re-runs automatic matching for one plan.
func (h *CoachHandler) RematchPlan(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}

	matched, err := h.coachService.RematchPlan(c.Request.Context(), coachID, planID)
	if err != nil {
		h.abortPlanError(c, err, "Failed to rematch plan")
		return
	}
	c.JSON(http.StatusOK, gin.H{"newMatches": matched})
}

// --- Helpers ---

// abortPlanError maps common plan-scoped service errors to HTTP statuses.
func (h *CoachHandler) abortPlanError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrPlanNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPlanNotOwned):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrActivityNotFound), errors.Is(err, service.ErrMatchNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidWorkoutDay), errors.Is(err, service.ErrInvalidPreferredTime):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}

// callerID extracts the authenticated user's ObjectID from the context.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	idStr, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Invalid user ID in token")
		return primitive.NilObjectID, false
	}
	return id, true
}

// objectIDParam parses an ObjectID path parameter.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// mapWorkoutsRequest converts the request workout map to domain values.
func mapWorkoutsRequest(workouts map[string]PlannedWorkoutRequest) map[string]domain.PlannedWorkout {
	if workouts == nil {
		return nil
	}
	result := make(map[string]domain.PlannedWorkout, len(workouts))
	for day, w := range workouts {
		result[day] = domain.PlannedWorkout{
			Type:          w.Type,
			DistanceKm:    w.DistanceKm,
			DurationMin:   w.DurationMin,
			Pace:          w.Pace,
			PreferredTime: w.PreferredTime,
			Notes:         w.Notes,
		}
	}
	return result
}
