// internal/service/mentee_service.go
package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MenteeService is the mentee's read-side: their own plans, matches and
// synced activities. Writes happen through sync (activities) and the
// coach (plans, overrides).
type MenteeService interface {
	GetMyPlans(ctx context.Context, menteeID primitive.ObjectID) ([]PlanWithMatches, error)
	GetMyActivities(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
}

// menteeService implements the MenteeService interface.
type menteeService struct {
	planRepo     repository.PlanRepository
	activityRepo repository.ActivityRepository
	matchRepo    repository.MatchRepository
}

// NewMenteeService creates a new instance of menteeService.
func NewMenteeService(
	planRepo repository.PlanRepository,
	activityRepo repository.ActivityRepository,
	matchRepo repository.MatchRepository,
) MenteeService {
	return &menteeService{
		planRepo:     planRepo,
		activityRepo: activityRepo,
		matchRepo:    matchRepo,
	}
}

// GetMyPlans returns the mentee's plans, newest week first, each with its
// current match rows.
func (s *menteeService) GetMyPlans(ctx context.Context, menteeID primitive.ObjectID) ([]PlanWithMatches, error) {
	plans, err := s.planRepo.GetByMenteeID(ctx, menteeID)
	if err != nil {
		return nil, err
	}

	result := make([]PlanWithMatches, 0, len(plans))
	for i := range plans {
		matches, err := s.matchRepo.GetByPlanID(ctx, plans[i].ID)
		if err != nil {
			return nil, err
		}
		result = append(result, PlanWithMatches{TrainingPlan: plans[i], Matches: matches})
	}
	return result, nil
}

// GetMyActivities returns the mentee's synced activities in [from, to].
func (s *menteeService) GetMyActivities(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	return s.activityRepo.GetByMenteeInRange(ctx, menteeID, from, to)
}
