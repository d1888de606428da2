package api

import (
	"alcyxob/strava-coaching/internal/domain" // Needed for RoleMiddleware
	"alcyxob/strava-coaching/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	coachService service.CoachService,
	menteeService service.MenteeService,
	syncService service.SyncService,
) {

	authHandler := NewAuthHandler(authService)
	coachHandler := NewCoachHandler(coachService)
	menteeHandler := NewMenteeHandler(menteeService, syncService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Coach Routes ---
		// Require authentication AND the 'coach' role.
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			// Mentee management
			coachGroup.POST("/mentees", coachHandler.AddMenteeByEmail)
			coachGroup.GET("/mentees", coachHandler.GetManagedMentees)
			// GET /api/v1/coach/mentees/{menteeId}/archives lists archived
			// raw sync payloads with presigned download URLs.
			coachGroup.GET("/mentees/:menteeId/archives", coachHandler.GetSyncArchives)

			// --- Training Plan Management ---
			// POST /api/v1/coach/mentees/{menteeId}/plans
			coachGroup.POST("/mentees/:menteeId/plans", coachHandler.CreateTrainingPlan)
			// GET /api/v1/coach/mentees/{menteeId}/plans
			coachGroup.GET("/mentees/:menteeId/plans", coachHandler.GetTrainingPlansForMentee)
			// PUT /api/v1/coach/plans/{planId}/workouts (triggers rematch)
			coachGroup.PUT("/plans/:planId/workouts", coachHandler.UpdatePlanWorkouts)
			// DELETE /api/v1/coach/plans/{planId}
			coachGroup.DELETE("/plans/:planId", coachHandler.DeletePlan)

			// --- Match Review & Overrides ---
			// GET /api/v1/coach/plans/{planId}/matches
			coachGroup.GET("/plans/:planId/matches", coachHandler.GetPlanMatches)
			// POST /api/v1/coach/plans/{planId}/matches (manual override)
			coachGroup.POST("/plans/:planId/matches", coachHandler.ManualMatch)
			// DELETE /api/v1/coach/plans/{planId}/matches/{activityId}
			coachGroup.DELETE("/plans/:planId/matches/:activityId", coachHandler.RemoveMatch)
			// POST /api/v1/coach/plans/{planId}/rematch
			coachGroup.POST("/plans/:planId/rematch", coachHandler.RematchPlan)
		}

		// --- Mentee Routes ---
		menteeGroup := protected.Group("/mentee")
		menteeGroup.Use(RoleMiddleware(domain.RoleMentee))
		{
			menteeGroup.GET("/plans", menteeHandler.GetMyPlans)
			menteeGroup.GET("/activities", menteeHandler.GetMyActivities)
			// POST /api/v1/mentee/sync fetches new Strava activities and matches them
			menteeGroup.POST("/sync", menteeHandler.SyncMe)
		}
	}
}
