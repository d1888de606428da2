// internal/service/coach_service.go
package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"alcyxob/strava-coaching/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrMenteeNotManaged     = errors.New("mentee is not managed by this coach")
	ErrPlanNotOwned         = errors.New("training plan does not belong to this coach")
	ErrUserNotMentee        = errors.New("target user is not a mentee")
	ErrWeekStartNotMonday   = errors.New("plan week must start on a Monday")
	ErrInvalidWorkoutDay    = errors.New("workout keys must be lowercase day names (monday..sunday)")
	ErrInvalidPreferredTime = errors.New("preferredTime must be morning, afternoon or evening")
)

// PlanWithMatches pairs a plan with its current match rows for coach review.
type PlanWithMatches struct {
	domain.TrainingPlan
	Matches []domain.ActivityPlanMatch `json:"matches"`
}

// SyncArchiveDownload pairs an archived raw sync payload with a
// short-lived download URL.
type SyncArchiveDownload struct {
	ObjectKey   string    `json:"objectKey"`
	SizeBytes   int       `json:"sizeBytes"`
	ArchivedAt  time.Time `json:"archivedAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// maxArchiveListing caps how many archived pages a coach sees per mentee.
const maxArchiveListing = 50

// CoachService covers everything a coach does: managing mentees,
// authoring weekly plans, reviewing matches, and overriding them.
type CoachService interface {
	// Mentee management
	AddMenteeByEmail(ctx context.Context, coachID primitive.ObjectID, menteeEmail string) (*domain.User, error)
	GetManagedMentees(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
	// GetSyncArchives lists a mentee's archived raw sync payloads, newest
	// first, each with a presigned download URL.
	GetSyncArchives(ctx context.Context, coachID, menteeID primitive.ObjectID) ([]SyncArchiveDownload, error)

	// Plan authoring
	CreateWeeklyPlan(ctx context.Context, coachID, menteeID primitive.ObjectID, name string, weekStart time.Time, workouts map[string]domain.PlannedWorkout) (*domain.TrainingPlan, error)
	UpdatePlanWorkouts(ctx context.Context, coachID, planID primitive.ObjectID, workouts map[string]domain.PlannedWorkout) (*domain.TrainingPlan, error)
	GetPlansForMentee(ctx context.Context, coachID, menteeID primitive.ObjectID) ([]domain.TrainingPlan, error)
	DeletePlan(ctx context.Context, coachID, planID primitive.ObjectID) error

	// Match review and overrides
	GetPlanWithMatches(ctx context.Context, coachID, planID primitive.ObjectID) (*PlanWithMatches, error)
	ManualMatch(ctx context.Context, coachID primitive.ObjectID, activityID int64, planID primitive.ObjectID, workoutDay string) error
	RemoveMatch(ctx context.Context, coachID primitive.ObjectID, activityID int64, planID primitive.ObjectID) error
	RematchPlan(ctx context.Context, coachID, planID primitive.ObjectID) (int, error)
}

// coachService implements the CoachService interface.
type coachService struct {
	userRepo    repository.UserRepository
	planRepo    repository.PlanRepository
	matchRepo   repository.MatchRepository
	archiveRepo repository.ArchiveRepository
	archive     storage.ArchiveStorage
	matcher     MatchingService
}

// NewCoachService creates a new instance of coachService.
func NewCoachService(
	userRepo repository.UserRepository,
	planRepo repository.PlanRepository,
	matchRepo repository.MatchRepository,
	archiveRepo repository.ArchiveRepository,
	archive storage.ArchiveStorage,
	matcher MatchingService,
) CoachService {
	return &coachService{
		userRepo:    userRepo,
		planRepo:    planRepo,
		matchRepo:   matchRepo,
		archiveRepo: archiveRepo,
		archive:     archive,
		matcher:     matcher,
	}
}

// === Mentee Management ===

// AddMenteeByEmail links an existing mentee account to this coach.
func (s *coachService) AddMenteeByEmail(ctx context.Context, coachID primitive.ObjectID, menteeEmail string) (*domain.User, error) {
	if menteeEmail == "" {
		return nil, errors.New("mentee email is required")
	}

	mentee, err := s.userRepo.GetByEmail(ctx, menteeEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMenteeNotFound
		}
		return nil, err
	}
	if !mentee.IsMentee() {
		return nil, ErrUserNotMentee
	}

	if err := s.userRepo.AddMenteeIDToCoach(ctx, coachID, mentee.ID); err != nil {
		return nil, err
	}
	if err := s.userRepo.SetCoachForMentee(ctx, mentee.ID, coachID); err != nil {
		return nil, err
	}

	mentee.PasswordHash = ""
	return mentee, nil
}

// GetManagedMentees lists the coach's mentees.
func (s *coachService) GetManagedMentees(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	mentees, err := s.userRepo.GetMenteesByCoachID(ctx, coachID)
	if err != nil {
		return nil, err
	}
	for i := range mentees {
		mentees[i].PasswordHash = ""
	}
	return mentees, nil
}

// GetSyncArchives lists the mentee's archived raw Strava payloads for
// the coach to inspect. Each entry carries a presigned URL; the coach
// downloads directly from the storage provider, nothing streams through
// this service.
func (s *coachService) GetSyncArchives(ctx context.Context, coachID, menteeID primitive.ObjectID) ([]SyncArchiveDownload, error) {
	if err := s.ensureManages(ctx, coachID, menteeID); err != nil {
		return nil, err
	}

	archives, err := s.archiveRepo.GetByMenteeID(ctx, menteeID, maxArchiveListing)
	if err != nil {
		return nil, err
	}

	downloads := make([]SyncArchiveDownload, 0, len(archives))
	for _, a := range archives {
		url, err := s.archive.GeneratePresignedDownloadURL(ctx, a.ObjectKey, storage.DefaultPresignedURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("presigning archive %s: %w", a.ObjectKey, err)
		}
		downloads = append(downloads, SyncArchiveDownload{
			ObjectKey:   a.ObjectKey,
			SizeBytes:   a.SizeBytes,
			ArchivedAt:  a.ArchivedAt,
			DownloadURL: url,
		})
	}
	return downloads, nil
}

// === Plan Authoring ===

// CreateWeeklyPlan creates one Monday-aligned training week for a mentee.
func (s *coachService) CreateWeeklyPlan(ctx context.Context, coachID, menteeID primitive.ObjectID, name string, weekStart time.Time, workouts map[string]domain.PlannedWorkout) (*domain.TrainingPlan, error) {
	if err := s.ensureManages(ctx, coachID, menteeID); err != nil {
		return nil, err
	}

	weekStart = truncateToDay(weekStart)
	if weekStart.Weekday() != time.Monday {
		return nil, ErrWeekStartNotMonday
	}
	if err := validateWorkouts(workouts); err != nil {
		return nil, err
	}

	plan := &domain.TrainingPlan{
		CoachID:   coachID,
		MenteeID:  menteeID,
		Name:      name,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6), // Invariant: always weekStart + 6 days
		Status:    domain.PlanStatusActive,
		Workouts:  workouts,
	}

	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = planID
	return plan, nil
}

// UpdatePlanWorkouts replaces a plan's workouts and re-runs matching for
// that plan so matches follow the edited targets.
func (s *coachService) UpdatePlanWorkouts(ctx context.Context, coachID, planID primitive.ObjectID, workouts map[string]domain.PlannedWorkout) (*domain.TrainingPlan, error) {
	plan, err := s.ownedPlan(ctx, coachID, planID)
	if err != nil {
		return nil, err
	}
	if err := validateWorkouts(workouts); err != nil {
		return nil, err
	}

	if err := s.planRepo.UpdateWorkouts(ctx, planID, workouts); err != nil {
		return nil, err
	}
	plan.Workouts = workouts

	if _, err := s.matcher.RematchPlan(ctx, planID); err != nil {
		return nil, fmt.Errorf("rematching after workout edit: %w", err)
	}

	// Reload to pick up the recomputed completion stats.
	return s.planRepo.GetByID(ctx, planID)
}

// GetPlansForMentee lists the coach's plans for one mentee.
func (s *coachService) GetPlansForMentee(ctx context.Context, coachID, menteeID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return s.planRepo.GetByMenteeAndCoachID(ctx, menteeID, coachID)
}

// DeletePlan removes a plan and all of its match rows.
func (s *coachService) DeletePlan(ctx context.Context, coachID, planID primitive.ObjectID) error {
	if _, err := s.ownedPlan(ctx, coachID, planID); err != nil {
		return err
	}
	// Release the plan's claimed activities before removing the plan.
	if err := s.matchRepo.DeleteByPlan(ctx, planID, ""); err != nil {
		return err
	}
	return s.planRepo.Delete(ctx, planID, coachID)
}

// === Match Review and Overrides ===

// GetPlanWithMatches returns a plan together with its match rows.
func (s *coachService) GetPlanWithMatches(ctx context.Context, coachID, planID primitive.ObjectID) (*PlanWithMatches, error) {
	plan, err := s.ownedPlan(ctx, coachID, planID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, err
	}
	return &PlanWithMatches{TrainingPlan: *plan, Matches: matches}, nil
}

// ManualMatch pins an activity to a plan day on the coach's authority.
func (s *coachService) ManualMatch(ctx context.Context, coachID primitive.ObjectID, activityID int64, planID primitive.ObjectID, workoutDay string) error {
	if _, err := s.ownedPlan(ctx, coachID, planID); err != nil {
		return err
	}
	return s.matcher.ManualMatch(ctx, activityID, planID, workoutDay)
}

// RemoveMatch deletes a specific match row.
func (s *coachService) RemoveMatch(ctx context.Context, coachID primitive.ObjectID, activityID int64, planID primitive.ObjectID) error {
	if _, err := s.ownedPlan(ctx, coachID, planID); err != nil {
		return err
	}
	return s.matcher.RemoveActivityMatch(ctx, activityID, planID)
}

// RematchPlan re-runs automatic matching for one plan.
func (s *coachService) RematchPlan(ctx context.Context, coachID, planID primitive.ObjectID) (int, error) {
	if _, err := s.ownedPlan(ctx, coachID, planID); err != nil {
		return 0, err
	}
	return s.matcher.RematchPlan(ctx, planID)
}

// === Helpers ===

// ownedPlan fetches a plan and verifies coach ownership.
func (s *coachService) ownedPlan(ctx context.Context, coachID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.CoachID != coachID {
		return nil, ErrPlanNotOwned
	}
	return plan, nil
}

// ensureManages verifies the coach manages this mentee.
func (s *coachService) ensureManages(ctx context.Context, coachID, menteeID primitive.ObjectID) error {
	mentee, err := s.userRepo.GetByID(ctx, menteeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMenteeNotFound
		}
		return err
	}
	if !mentee.IsMentee() {
		return ErrUserNotMentee
	}
	if mentee.CoachID == nil || *mentee.CoachID != coachID {
		return ErrMenteeNotManaged
	}
	return nil
}

// validateWorkouts checks day keys and enum fields. Target values are
// not validated beyond sign; a coach may plan whatever they like.
func validateWorkouts(workouts map[string]domain.PlannedWorkout) error {
	for dayName, w := range workouts {
		if _, ok := domain.ParseWeekday(dayName); !ok {
			return ErrInvalidWorkoutDay
		}
		switch w.PreferredTime {
		case "", domain.PreferredTimeMorning, domain.PreferredTimeAfternoon, domain.PreferredTimeEvening:
		default:
			return ErrInvalidPreferredTime
		}
		if w.DistanceKm != nil && *w.DistanceKm < 0 {
			return errors.New("distanceKm cannot be negative")
		}
		if w.DurationMin != nil && *w.DurationMin < 0 {
			return errors.New("durationMin cannot be negative")
		}
	}
	return nil
}

// truncateToDay drops the time-of-day component.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
