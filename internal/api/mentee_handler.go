// internal/api/mentee_handler.go
package api

import (
	"alcyxob/strava-coaching/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// MenteeHandler holds the mentee-facing service dependencies.
type MenteeHandler struct {
	menteeService service.MenteeService
	syncService   service.SyncService
}

// NewMenteeHandler creates a new MenteeHandler.
func NewMenteeHandler(menteeService service.MenteeService, syncService service.SyncService) *MenteeHandler {
	return &MenteeHandler{
		menteeService: menteeService,
		syncService:   syncService,
	}
}

// GetMyPlans returns the calling mentee's plans with their matches.
func (h *MenteeHandler) GetMyPlans(c *gin.Context) {
	menteeID, ok := callerID(c)
	if !ok {
		return
	}

	plans, err := h.menteeService.GetMyPlans(c.Request.Context(), menteeID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch plans")
		return
	}
	c.JSON(http.StatusOK, plans)
}

// GetMyActivities returns the calling mentee's synced activities. Query
// params "from" and "to" (RFC 3339 dates) default to the last 30 days.
func (h *MenteeHandler) GetMyActivities(c *gin.Context) {
	menteeID, ok := callerID(c)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp")
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp")
			return
		}
		to = parsed
	}

	activities, err := h.menteeService.GetMyActivities(c.Request.Context(), menteeID, from, to)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch activities")
		return
	}
	c.JSON(http.StatusOK, activities)
}

// SyncMe triggers a sync-then-match run for the calling mentee.
func (h *MenteeHandler) SyncMe(c *gin.Context) {
	menteeID, ok := callerID(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncMentee(c.Request.Context(), menteeID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenteeNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrStravaNotLinked):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusBadGateway, "Sync failed")
		}
		return
	}
	c.JSON(http.StatusOK, result)
}
