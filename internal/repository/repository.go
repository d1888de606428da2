package repository

import (
	"alcyxob/strava-coaching/internal/domain" // Import our defined domain models
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound       = RepositoryError("not found")
	ErrDuplicateClaim = RepositoryError("activity already claimed by another match")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	AddMenteeIDToCoach(ctx context.Context, coachID, menteeID primitive.ObjectID) error
	GetMenteesByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
	SetCoachForMentee(ctx context.Context, menteeID, coachID primitive.ObjectID) error
	// GetMenteesWithStrava returns all mentees carrying linked Strava
	// credentials; the scheduled sync iterates over these.
	GetMenteesWithStrava(ctx context.Context) ([]domain.User, error)
	UpdateStravaCredentials(ctx context.Context, menteeID primitive.ObjectID, creds *domain.StravaCredentials) error
	SetLastSyncedAt(ctx context.Context, menteeID primitive.ObjectID, at time.Time) error
}

// PlanRepository defines the interface for interacting with training plan data.
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetByMenteeAndCoachID(ctx context.Context, menteeID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error)
	GetByMenteeID(ctx context.Context, menteeID primitive.ObjectID) ([]domain.TrainingPlan, error)
	// GetActivePlansSince returns the mentee's active plans whose week
	// starts on or after sinceDate, ordered by weekStart ascending.
	GetActivePlansSince(ctx context.Context, menteeID primitive.ObjectID, sinceDate time.Time) ([]domain.TrainingPlan, error)
	UpdateWorkouts(ctx context.Context, planID primitive.ObjectID, workouts map[string]domain.PlannedWorkout) error
	// UpdateCompletionStats writes the cached completion numbers onto the plan.
	UpdateCompletionStats(ctx context.Context, planID primitive.ObjectID, percentage float64, completed, planned int) error
	Delete(ctx context.Context, planID, coachID primitive.ObjectID) error
}

// ActivityRepository defines the interface for interacting with synced activities.
type ActivityRepository interface {
	// Upsert inserts the activity or replaces the stored copy with the
	// same stravaId. Re-syncing the same window is idempotent.
	Upsert(ctx context.Context, activity *domain.Activity) error
	GetByStravaID(ctx context.Context, stravaID int64) (*domain.Activity, error)
	// GetUnclaimedInRange returns the mentee's activities with startDate
	// inside [from, to] that have no match row anywhere in the system,
	// ordered by startDate ascending.
	GetUnclaimedInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
	GetByMenteeInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
}

// MatchRepository defines the interface for interacting with match rows.
type MatchRepository interface {
	// Save persists a match with upsert semantics: any existing row for
	// the same activityId (in any plan) is deleted first, then the new
	// row is inserted.
	Save(ctx context.Context, match *domain.ActivityPlanMatch) error
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.ActivityPlanMatch, error)
	GetByActivityID(ctx context.Context, activityID int64) (*domain.ActivityPlanMatch, error)
	// DeleteByPlan removes match rows for a plan. An empty typeFilter
	// deletes all of them; otherwise only rows of that match type go.
	DeleteByPlan(ctx context.Context, planID primitive.ObjectID, typeFilter domain.MatchType) error
	DeleteByActivityAndPlan(ctx context.Context, activityID int64, planID primitive.ObjectID) error
	// DeleteByPlanAndDay clears the row occupying one plan day, if any.
	// Manual overrides use this to displace the day's current match.
	DeleteByPlanAndDay(ctx context.Context, planID primitive.ObjectID, workoutDay string) error
	// CountWithMinConfidence counts a plan's rows at or above the given
	// confidence; the completion aggregator uses threshold 50.
	CountWithMinConfidence(ctx context.Context, planID primitive.ObjectID, minConfidence int) (int, error)
}

// ArchiveRepository tracks the raw sync payloads stored in object
// storage, so they can be listed for coach review and pruned once the
// retention window passes.
type ArchiveRepository interface {
	Create(ctx context.Context, archive *domain.SyncArchive) error
	// GetByMenteeID returns the mentee's archive records, newest first,
	// capped at limit (0 means no cap).
	GetByMenteeID(ctx context.Context, menteeID primitive.ObjectID, limit int) ([]domain.SyncArchive, error)
	ListOlderThan(ctx context.Context, before time.Time) ([]domain.SyncArchive, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
