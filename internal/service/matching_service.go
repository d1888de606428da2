// internal/service/matching_service.go
package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound     = errors.New("training plan not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrMatchNotFound    = errors.New("match not found")
	ErrInvalidWeekday   = errors.New("workout day must be a lowercase day name (monday..sunday)")
)

const (
	// defaultSinceWindow bounds how far back a matching run looks for
	// plans when the caller gives no explicit lower bound.
	defaultSinceWindow = 30 * 24 * time.Hour

	// completionThreshold is the minimum confidence for a match to count
	// as a completed workout in the plan's completion percentage.
	completionThreshold = 50
)

// CompletionStats is the aggregator's result, cached on the plan.
type CompletionStats struct {
	Percentage float64 `json:"percentage"`
	Completed  int     `json:"completed"`
	Planned    int     `json:"planned"`
}

// MatchingService pairs a mentee's synced activities with their planned
// workouts. It performs no network I/O; all data flows through the
// injected repositories.
type MatchingService interface {
	// MatchActivitiesToPlans runs matching over all of the mentee's
	// active plans with weekStart >= since (default: 30 days back) and
	// returns the number of newly created matches. Completion stats are
	// recomputed for every processed plan.
	MatchActivitiesToPlans(ctx context.Context, menteeID primitive.ObjectID, since *time.Time) (int, error)

	// RematchPlan wipes a plan's automatic matches (manual overrides
	// survive) and re-runs matching for that single plan. Used after a
	// coach edits the plan's workouts or to pick up new activities.
	RematchPlan(ctx context.Context, planID primitive.ObjectID) (int, error)

	// ManualMatch force-assigns a synced activity to a plan day with
	// full confidence, replacing any existing match for that activity
	// and displacing whatever row occupied the day. The day is not
	// validated against the plan's workouts; an operator may pin an
	// activity to any slot.
	ManualMatch(ctx context.Context, activityID int64, planID primitive.ObjectID, workoutDay string) error

	// RemoveActivityMatch deletes the match binding an activity to this
	// plan. ErrMatchNotFound when the activity has no row, or its row
	// belongs to a different plan.
	RemoveActivityMatch(ctx context.Context, activityID int64, planID primitive.ObjectID) error

	// RecomputeCompletion re-derives a plan's completion stats from its
	// current matches and persists them. Pure function of plan + matches,
	// safe to call any number of times.
	RecomputeCompletion(ctx context.Context, plan *domain.TrainingPlan) (CompletionStats, error)
}

// matchingService implements the MatchingService interface.
type matchingService struct {
	planRepo     repository.PlanRepository
	activityRepo repository.ActivityRepository
	matchRepo    repository.MatchRepository
}

// NewMatchingService creates a new instance of matchingService.
func NewMatchingService(
	planRepo repository.PlanRepository,
	activityRepo repository.ActivityRepository,
	matchRepo repository.MatchRepository,
) MatchingService {
	return &matchingService{
		planRepo:     planRepo,
		activityRepo: activityRepo,
		matchRepo:    matchRepo,
	}
}

// MatchActivitiesToPlans is the matcher's entry point, called after every
// activity sync. Re-running with no new activities is a no-op: already
// claimed activities never re-enter the candidate pool.
func (s *matchingService) MatchActivitiesToPlans(ctx context.Context, menteeID primitive.ObjectID, since *time.Time) (int, error) {
	sinceDate := time.Now().UTC().Add(-defaultSinceWindow)
	if since != nil {
		sinceDate = since.UTC()
	}

	plans, err := s.planRepo.GetActivePlansSince(ctx, menteeID, sinceDate)
	if err != nil {
		return 0, fmt.Errorf("loading active plans: %w", err)
	}
	if len(plans) == 0 {
		return 0, nil
	}

	totalMatched := 0
	for i := range plans {
		matched, err := s.matchSinglePlan(ctx, menteeID, &plans[i])
		if err != nil {
			return totalMatched, err
		}
		totalMatched += matched
	}

	// Refresh cached completion stats on every processed plan, matched
	// or not. A plan with zero matches still needs its planned count.
	for i := range plans {
		if _, err := s.RecomputeCompletion(ctx, &plans[i]); err != nil {
			return totalMatched, err
		}
	}

	return totalMatched, nil
}

// matchSinglePlan runs the greedy per-day assignment for one plan week.
// Days are visited in fixed Monday-to-Sunday order; each day's workout
// takes the highest-scoring candidate performed on its exact calendar
// date, ties going to the earliest activity. There is no minimum score:
// any candidate beats no candidate.
func (s *matchingService) matchSinglePlan(ctx context.Context, menteeID primitive.ObjectID, plan *domain.TrainingPlan) (int, error) {
	weekEnd := plan.WeekStart.AddDate(0, 0, 6)

	// Candidate pool: the week's activities not claimed by any match row
	// anywhere in the system, ordered by startDate ascending.
	activities, err := s.activityRepo.GetUnclaimedInRange(ctx, menteeID, plan.WeekStart, endOfDay(weekEnd))
	if err != nil {
		return 0, fmt.Errorf("loading unclaimed activities: %w", err)
	}
	if len(activities) == 0 {
		return 0, nil
	}

	// Group candidates by calendar date. Slice order preserves the
	// ascending startDate sort within each day.
	byDate := make(map[string][]domain.Activity)
	for _, a := range activities {
		key := a.LocalDateKey()
		byDate[key] = append(byDate[key], a)
	}

	// Days that already carry a match row, from a previous run or a
	// manual override, keep it. A day slot holds at most one row, so a
	// later-synced activity on the same date must not add a second.
	existing, err := s.matchRepo.GetByPlanID(ctx, plan.ID)
	if err != nil {
		return 0, fmt.Errorf("loading existing matches: %w", err)
	}
	matchedDays := make(map[string]bool, len(existing))
	for _, m := range existing {
		matchedDays[m.WorkoutDay] = true
	}

	matched := 0
	for _, day := range domain.Weekdays {
		workout, ok := plan.WorkoutFor(day)
		if !ok {
			continue // Rest day: never consumes an activity.
		}
		if matchedDays[day.String()] {
			continue // Already matched in a prior run.
		}

		dateKey := day.DateWithin(plan.WeekStart).Format("2006-01-02")
		candidates := byDate[dateKey]
		if len(candidates) == 0 {
			continue // No activity that day; workout stays unmatched this run.
		}

		// Highest confidence wins; the first maximum seen is kept, so
		// equal scores resolve to the earliest activity.
		bestIdx := 0
		bestScore := matchConfidence(&candidates[0], workout)
		for i := 1; i < len(candidates); i++ {
			if score := matchConfidence(&candidates[i], workout); score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		best := candidates[bestIdx]
		match := &domain.ActivityPlanMatch{
			ActivityID:      best.StravaID,
			PlanID:          plan.ID,
			WorkoutDay:      day.String(),
			MatchConfidence: bestScore,
			MatchType:       domain.MatchTypeAutomatic,
		}
		if err := s.matchRepo.Save(ctx, match); err != nil {
			if errors.Is(err, repository.ErrDuplicateClaim) {
				// A concurrent run claimed this activity between our
				// unclaimed query and the insert. Drop the candidate and
				// leave the day for the next run.
				log.Printf("WARN: Activity %d already claimed, skipping %s for plan %s",
					best.StravaID, day, plan.ID.Hex())
				byDate[dateKey] = append(candidates[:bestIdx:bestIdx], candidates[bestIdx+1:]...)
				continue
			}
			return matched, fmt.Errorf("saving match for %s: %w", day, err)
		}

		// The claimed activity cannot satisfy a second day this run.
		byDate[dateKey] = append(candidates[:bestIdx:bestIdx], candidates[bestIdx+1:]...)
		matched++
	}

	return matched, nil
}

// RematchPlan deletes the plan's automatic matches, preserving manual
// overrides, then re-runs single-plan matching and recomputes completion.
func (s *matchingService) RematchPlan(ctx context.Context, planID primitive.ObjectID) (int, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrPlanNotFound
		}
		return 0, err
	}

	if err := s.matchRepo.DeleteByPlan(ctx, planID, domain.MatchTypeAutomatic); err != nil {
		return 0, fmt.Errorf("clearing automatic matches: %w", err)
	}

	matched, err := s.matchSinglePlan(ctx, plan.MenteeID, plan)
	if err != nil {
		return matched, err
	}
	if _, err := s.RecomputeCompletion(ctx, plan); err != nil {
		return matched, err
	}
	return matched, nil
}

// ManualMatch is the operator override: full confidence, any day slot,
// replaces whatever match the activity had before.
func (s *matchingService) ManualMatch(ctx context.Context, activityID int64, planID primitive.ObjectID, workoutDay string) error {
	if _, ok := domain.ParseWeekday(workoutDay); !ok {
		return ErrInvalidWeekday
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	// Only synced activities can be pinned; a typoed id must not
	// produce a phantom completed workout.
	if _, err := s.activityRepo.GetByStravaID(ctx, activityID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrActivityNotFound
		}
		return err
	}

	// The day slot holds at most one row; the override displaces it.
	if err := s.matchRepo.DeleteByPlanAndDay(ctx, planID, workoutDay); err != nil {
		return err
	}

	match := &domain.ActivityPlanMatch{
		ActivityID:      activityID,
		PlanID:          planID,
		WorkoutDay:      workoutDay,
		MatchConfidence: 100,
		MatchType:       domain.MatchTypeManual,
	}
	if err := s.matchRepo.Save(ctx, match); err != nil {
		return err
	}

	_, err = s.RecomputeCompletion(ctx, plan)
	return err
}

// RemoveActivityMatch deletes a specific match and refreshes the plan's
// completion stats.
func (s *matchingService) RemoveActivityMatch(ctx context.Context, activityID int64, planID primitive.ObjectID) error {
	match, err := s.matchRepo.GetByActivityID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if match.PlanID != planID {
		// The activity is claimed, but not by this plan.
		return ErrMatchNotFound
	}

	if err := s.matchRepo.DeleteByActivityAndPlan(ctx, activityID, planID); err != nil {
		return err
	}
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	_, err = s.RecomputeCompletion(ctx, plan)
	return err
}

// RecomputeCompletion derives the plan's completion stats. A plan with
// zero planned workouts is vacuously 100% complete regardless of
// activity history; otherwise completed counts matches at or above the
// confidence threshold, and the percentage is rounded to one decimal.
func (s *matchingService) RecomputeCompletion(ctx context.Context, plan *domain.TrainingPlan) (CompletionStats, error) {
	planned := plan.PlannedCount()

	stats := CompletionStats{Planned: planned}
	if planned == 0 {
		stats.Percentage = 100
	} else {
		completed, err := s.matchRepo.CountWithMinConfidence(ctx, plan.ID, completionThreshold)
		if err != nil {
			return CompletionStats{}, fmt.Errorf("counting completed workouts: %w", err)
		}
		stats.Completed = completed
		stats.Percentage = math.Round(float64(completed)/float64(planned)*1000) / 10
	}

	if err := s.planRepo.UpdateCompletionStats(ctx, plan.ID, stats.Percentage, stats.Completed, stats.Planned); err != nil {
		return CompletionStats{}, fmt.Errorf("updating plan stats: %w", err)
	}

	// Keep the in-memory plan consistent with what was persisted.
	plan.CompletionPercentage = stats.Percentage
	plan.WorkoutsCompleted = stats.Completed
	plan.WorkoutsPlanned = stats.Planned

	return stats, nil
}

// endOfDay pushes a date to the last instant of its calendar day so that
// range queries include the whole final day of the week.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
