package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- In-memory repository stubs ---

type stubPlanRepo struct {
	plans map[primitive.ObjectID]*domain.TrainingPlan
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{plans: make(map[primitive.ObjectID]*domain.TrainingPlan)}
}

func (r *stubPlanRepo) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	copied := *plan
	r.plans[plan.ID] = &copied
	return plan.ID, nil
}

func (r *stubPlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, ok := r.plans[id]
	if !ok {
		return nil, errNotFoundForTest
	}
	copied := *plan
	return &copied, nil
}

func (r *stubPlanRepo) GetByMenteeAndCoachID(ctx context.Context, menteeID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return nil, nil
}

func (r *stubPlanRepo) GetByMenteeID(ctx context.Context, menteeID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return nil, nil
}

func (r *stubPlanRepo) GetActivePlansSince(ctx context.Context, menteeID primitive.ObjectID, sinceDate time.Time) ([]domain.TrainingPlan, error) {
	var result []domain.TrainingPlan
	for _, plan := range r.plans {
		if plan.MenteeID == menteeID && plan.Status == domain.PlanStatusActive && !plan.WeekStart.Before(sinceDate) {
			result = append(result, *plan)
		}
	}
	return result, nil
}

func (r *stubPlanRepo) UpdateWorkouts(ctx context.Context, planID primitive.ObjectID, workouts map[string]domain.PlannedWorkout) error {
	plan, ok := r.plans[planID]
	if !ok {
		return errNotFoundForTest
	}
	plan.Workouts = workouts
	return nil
}

func (r *stubPlanRepo) UpdateCompletionStats(ctx context.Context, planID primitive.ObjectID, percentage float64, completed, planned int) error {
	plan, ok := r.plans[planID]
	if !ok {
		return errNotFoundForTest
	}
	plan.CompletionPercentage = percentage
	plan.WorkoutsCompleted = completed
	plan.WorkoutsPlanned = planned
	return nil
}

func (r *stubPlanRepo) Delete(ctx context.Context, planID, coachID primitive.ObjectID) error {
	delete(r.plans, planID)
	return nil
}

type stubMatchRepo struct {
	rows []domain.ActivityPlanMatch

	// duplicateClaims simulates losing the insert race: Save fails with
	// ErrDuplicateClaim for these activity ids.
	duplicateClaims map[int64]bool
}

func (r *stubMatchRepo) Save(ctx context.Context, match *domain.ActivityPlanMatch) error {
	if r.duplicateClaims[match.ActivityID] {
		return repository.ErrDuplicateClaim
	}
	// Global exclusivity: drop any existing row claiming this activity,
	// whatever plan it belongs to, then insert the new one.
	kept := r.rows[:0:0]
	for _, m := range r.rows {
		if m.ActivityID != match.ActivityID {
			kept = append(kept, m)
		}
	}
	saved := *match
	saved.ID = primitive.NewObjectID()
	saved.MatchedAt = time.Now().UTC()
	r.rows = append(kept, saved)
	return nil
}

func (r *stubMatchRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.ActivityPlanMatch, error) {
	var result []domain.ActivityPlanMatch
	for _, m := range r.rows {
		if m.PlanID == planID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *stubMatchRepo) GetByActivityID(ctx context.Context, activityID int64) (*domain.ActivityPlanMatch, error) {
	for _, m := range r.rows {
		if m.ActivityID == activityID {
			copied := m
			return &copied, nil
		}
	}
	return nil, errNotFoundForTest
}

func (r *stubMatchRepo) DeleteByPlan(ctx context.Context, planID primitive.ObjectID, typeFilter domain.MatchType) error {
	kept := r.rows[:0:0]
	for _, m := range r.rows {
		if m.PlanID == planID && (typeFilter == "" || m.MatchType == typeFilter) {
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return nil
}

func (r *stubMatchRepo) DeleteByPlanAndDay(ctx context.Context, planID primitive.ObjectID, workoutDay string) error {
	kept := r.rows[:0:0]
	for _, m := range r.rows {
		if m.PlanID == planID && m.WorkoutDay == workoutDay {
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return nil
}

func (r *stubMatchRepo) DeleteByActivityAndPlan(ctx context.Context, activityID int64, planID primitive.ObjectID) error {
	kept := r.rows[:0:0]
	for _, m := range r.rows {
		if m.ActivityID == activityID && m.PlanID == planID {
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return nil
}

func (r *stubMatchRepo) CountWithMinConfidence(ctx context.Context, planID primitive.ObjectID, minConfidence int) (int, error) {
	count := 0
	for _, m := range r.rows {
		if m.PlanID == planID && m.MatchConfidence >= minConfidence {
			count++
		}
	}
	return count, nil
}

type stubActivityRepo struct {
	activities []domain.Activity
	matches    *stubMatchRepo
}

func (r *stubActivityRepo) Upsert(ctx context.Context, activity *domain.Activity) error {
	for i := range r.activities {
		if r.activities[i].StravaID == activity.StravaID {
			r.activities[i] = *activity
			return nil
		}
	}
	r.activities = append(r.activities, *activity)
	return nil
}

func (r *stubActivityRepo) GetByStravaID(ctx context.Context, stravaID int64) (*domain.Activity, error) {
	for i := range r.activities {
		if r.activities[i].StravaID == stravaID {
			copied := r.activities[i]
			return &copied, nil
		}
	}
	return nil, errNotFoundForTest
}

func (r *stubActivityRepo) GetUnclaimedInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	claimed := make(map[int64]bool)
	for _, m := range r.matches.rows {
		claimed[m.ActivityID] = true
	}
	var result []domain.Activity
	for _, a := range r.activities {
		if a.MenteeID != menteeID || claimed[a.StravaID] {
			continue
		}
		if a.StartDate.Before(from) || a.StartDate.After(to) {
			continue
		}
		result = append(result, a)
	}
	// startDate ascending, as the real repository sorts.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].StartDate.Before(result[j-1].StartDate); j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result, nil
}

func (r *stubActivityRepo) GetByMenteeInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	var result []domain.Activity
	for _, a := range r.activities {
		if a.MenteeID == menteeID && !a.StartDate.Before(from) && !a.StartDate.After(to) {
			result = append(result, a)
		}
	}
	return result, nil
}

// errNotFoundForTest is the sentinel the service layer checks with errors.Is.
var errNotFoundForTest = repository.ErrNotFound

// --- Test fixtures ---

// weekStart is a Monday; every fixture lives inside this plan week.
var weekStart = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

type matcherFixture struct {
	planRepo     *stubPlanRepo
	activityRepo *stubActivityRepo
	matchRepo    *stubMatchRepo
	svc          MatchingService
	menteeID     primitive.ObjectID
}

func newMatcherFixture() *matcherFixture {
	planRepo := newStubPlanRepo()
	matchRepo := &stubMatchRepo{}
	activityRepo := &stubActivityRepo{matches: matchRepo}
	return &matcherFixture{
		planRepo:     planRepo,
		activityRepo: activityRepo,
		matchRepo:    matchRepo,
		svc:          NewMatchingService(planRepo, activityRepo, matchRepo),
		menteeID:     primitive.NewObjectID(),
	}
}

func (f *matcherFixture) addPlan(t *testing.T, workouts map[string]domain.PlannedWorkout) primitive.ObjectID {
	t.Helper()
	plan := &domain.TrainingPlan{
		CoachID:   primitive.NewObjectID(),
		MenteeID:  f.menteeID,
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		Status:    domain.PlanStatusActive,
		Workouts:  workouts,
	}
	id, err := f.planRepo.Create(context.Background(), plan)
	require.NoError(t, err)
	return id
}

func (f *matcherFixture) addActivity(t *testing.T, stravaID int64, activityType string, start time.Time, distanceM float64, movingS int, speedMps float64) {
	t.Helper()
	err := f.activityRepo.Upsert(context.Background(), &domain.Activity{
		StravaID:        stravaID,
		MenteeID:        f.menteeID,
		ActivityType:    activityType,
		DistanceM:       distanceM,
		MovingTimeS:     movingS,
		AverageSpeedMps: speedMps,
		StartDate:       start,
		SyncedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *matcherFixture) match(t *testing.T) int {
	t.Helper()
	since := weekStart
	matched, err := f.svc.MatchActivitiesToPlans(context.Background(), f.menteeID, &since)
	require.NoError(t, err)
	return matched
}

func runWorkout() domain.PlannedWorkout {
	return domain.PlannedWorkout{
		Type:        "run",
		DistanceKm:  floatPtr(5),
		DurationMin: floatPtr(25),
		Pace:        "5:00",
	}
}

// --- Tests ---

func TestMatchCreatesAutomaticMatch(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))

	rows, err := f.matchRepo.GetByPlanID(context.Background(), planID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(101), rows[0].ActivityID)
	require.Equal(t, "tuesday", rows[0].WorkoutDay)
	require.Equal(t, domain.MatchTypeAutomatic, rows[0].MatchType)
	require.Equal(t, 98, rows[0].MatchConfidence)

	plan, err := f.planRepo.GetByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 1, plan.WorkoutsPlanned)
	require.Equal(t, 1, plan.WorkoutsCompleted)
	require.Equal(t, 100.0, plan.CompletionPercentage)
}

func TestMatchIsIdempotent(t *testing.T) {
	f := newMatcherFixture()
	f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))
	require.Equal(t, 0, f.match(t), "second run must not create new matches")
	require.Len(t, f.matchRepo.rows, 1)
}

func TestMatchedDayKeepsSingleRowWhenNewActivityArrives(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	tuesday := weekStart.AddDate(0, 0, 1)
	f.addActivity(t, 201, "Run", tuesday.Add(8*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))

	// A later sync brings in a second run on the already-matched day.
	f.addActivity(t, 202, "Run", tuesday.Add(18*time.Hour), 5000, 1500, 3.3333)
	require.Equal(t, 0, f.match(t), "an occupied day slot must not take a second row")

	rows, err := f.matchRepo.GetByPlanID(context.Background(), planID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(201), rows[0].ActivityID, "the original match stays")

	plan, err := f.planRepo.GetByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 1, plan.WorkoutsCompleted)
	require.Equal(t, 100.0, plan.CompletionPercentage)
}

func TestRestDayNeverConsumesActivity(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, nil) // all rest days
	f.addActivity(t, 101, "Run", weekStart.Add(7*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 0, f.match(t))
	require.Empty(t, f.matchRepo.rows)

	// Zero planned workouts is vacuously 100% complete.
	plan, err := f.planRepo.GetByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 100.0, plan.CompletionPercentage)
	require.Equal(t, 0, plan.WorkoutsPlanned)
}

func TestActivityOnlyMatchesItsCalendarDay(t *testing.T) {
	f := newMatcherFixture()
	f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	// Perfect run, but on Wednesday.
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 2).Add(8*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 0, f.match(t))
	require.Empty(t, f.matchRepo.rows)
}

func TestHighestConfidenceWins(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	tuesday := weekStart.AddDate(0, 0, 1)
	f.addActivity(t, 201, "Ride", tuesday.Add(7*time.Hour), 20000, 3600, 5.5)
	f.addActivity(t, 202, "Run", tuesday.Add(9*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))

	rows, err := f.matchRepo.GetByPlanID(context.Background(), planID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(202), rows[0].ActivityID, "the run must beat the ride")
}

func TestEqualScoresGoToEarliestActivity(t *testing.T) {
	f := newMatcherFixture()
	f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	tuesday := weekStart.AddDate(0, 0, 1)
	// Identical metrics, different start times, added out of order.
	f.addActivity(t, 302, "Run", tuesday.Add(10*time.Hour), 5000, 1500, 3.3333)
	f.addActivity(t, 301, "Run", tuesday.Add(7*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))
	require.Equal(t, int64(301), f.matchRepo.rows[0].ActivityID)
}

func TestClaimedActivityIsExcludedSystemWide(t *testing.T) {
	f := newMatcherFixture()
	f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)

	// Another plan already claims this activity.
	require.NoError(t, f.matchRepo.Save(context.Background(), &domain.ActivityPlanMatch{
		ActivityID:      101,
		PlanID:          primitive.NewObjectID(),
		WorkoutDay:      "tuesday",
		MatchConfidence: 80,
		MatchType:       domain.MatchTypeAutomatic,
	}))

	require.Equal(t, 0, f.match(t))
	require.Len(t, f.matchRepo.rows, 1, "the existing claim must be untouched")
}

func TestLostClaimRaceSkipsActivity(t *testing.T) {
	f := newMatcherFixture()
	f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)

	// A concurrent run claims the activity between the unclaimed query
	// and our insert; the unique index rejects the second row.
	f.matchRepo.duplicateClaims = map[int64]bool{101: true}

	require.Equal(t, 0, f.match(t), "a lost claim race is not a matching failure")
	require.Empty(t, f.matchRepo.rows)
}

func TestManualMatchSurvivesRematch(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{
		"tuesday": runWorkout(),
		"sunday":  {Type: "bike", DistanceKm: floatPtr(40)},
	})
	tuesday := weekStart.AddDate(0, 0, 1)
	sunday := weekStart.AddDate(0, 0, 6)
	f.addActivity(t, 101, "Run", tuesday.Add(8*time.Hour), 5000, 1500, 3.3333)
	f.addActivity(t, 102, "Ride", sunday.Add(9*time.Hour), 41000, 5400, 7.6)

	require.Equal(t, 2, f.match(t))

	// Coach pins activity 102 to tuesday instead. The override displaces
	// the automatic tuesday row (freeing activity 101) and releases 102's
	// old sunday row.
	require.NoError(t, f.svc.ManualMatch(context.Background(), 102, planID, "tuesday"))
	require.Len(t, f.matchRepo.rows, 1)

	matched, err := f.svc.RematchPlan(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 0, matched, "the manual override holds tuesday; 101 ran on no other planned day")

	manual, err := f.matchRepo.GetByActivityID(context.Background(), 102)
	require.NoError(t, err)
	require.Equal(t, domain.MatchTypeManual, manual.MatchType)
	require.Equal(t, 100, manual.MatchConfidence)
	require.Equal(t, "tuesday", manual.WorkoutDay)

	// The displaced activity is free again, not claimed anywhere.
	_, err = f.matchRepo.GetByActivityID(context.Background(), 101)
	require.ErrorIs(t, err, errNotFoundForTest)

	plan, err := f.planRepo.GetByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 1, plan.WorkoutsCompleted)
	require.Equal(t, 50.0, plan.CompletionPercentage)
}

func TestManualMatchRejectsBadWeekday(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})

	err := f.svc.ManualMatch(context.Background(), 101, planID, "Tuesday")
	require.ErrorIs(t, err, ErrInvalidWeekday)
	err = f.svc.ManualMatch(context.Background(), 101, planID, "someday")
	require.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestManualMatchUnknownActivity(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})

	err := f.svc.ManualMatch(context.Background(), 999, planID, "tuesday")
	require.ErrorIs(t, err, ErrActivityNotFound)
	require.Empty(t, f.matchRepo.rows)
}

func TestRematchUnknownPlan(t *testing.T) {
	f := newMatcherFixture()
	_, err := f.svc.RematchPlan(context.Background(), primitive.NewObjectID())
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestRemoveActivityMatchFreesActivity(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)

	require.Equal(t, 1, f.match(t))
	require.NoError(t, f.svc.RemoveActivityMatch(context.Background(), 101, planID))
	require.Empty(t, f.matchRepo.rows)

	plan, err := f.planRepo.GetByID(context.Background(), planID)
	require.NoError(t, err)
	require.Equal(t, 0, plan.WorkoutsCompleted)
	require.Equal(t, 0.0, plan.CompletionPercentage)

	// The freed activity can be claimed again.
	require.Equal(t, 1, f.match(t))
}

func TestRemoveMatchRequiresExistingRow(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{"tuesday": runWorkout()})

	err := f.svc.RemoveActivityMatch(context.Background(), 101, planID)
	require.ErrorIs(t, err, ErrMatchNotFound)

	// An activity claimed by one plan is not removable through another.
	f.addActivity(t, 101, "Run", weekStart.AddDate(0, 0, 1).Add(8*time.Hour), 5000, 1500, 3.3333)
	require.Equal(t, 1, f.match(t))
	err = f.svc.RemoveActivityMatch(context.Background(), 101, primitive.NewObjectID())
	require.ErrorIs(t, err, ErrMatchNotFound)
	require.Len(t, f.matchRepo.rows, 1, "the real match must survive the misdirected removal")
}

func TestCompletionCountsOnlyConfidentMatches(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{
		"monday":  runWorkout(),
		"tuesday": runWorkout(),
	})
	ctx := context.Background()

	// One row just below the threshold, one exactly at it.
	require.NoError(t, f.matchRepo.Save(ctx, &domain.ActivityPlanMatch{
		ActivityID: 1, PlanID: planID, WorkoutDay: "monday",
		MatchConfidence: 49, MatchType: domain.MatchTypeAutomatic,
	}))
	require.NoError(t, f.matchRepo.Save(ctx, &domain.ActivityPlanMatch{
		ActivityID: 2, PlanID: planID, WorkoutDay: "tuesday",
		MatchConfidence: 50, MatchType: domain.MatchTypeAutomatic,
	}))

	plan, err := f.planRepo.GetByID(ctx, planID)
	require.NoError(t, err)
	stats, err := f.svc.RecomputeCompletion(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Planned)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 50.0, stats.Percentage)
}

func TestCompletionRoundsToOneDecimal(t *testing.T) {
	f := newMatcherFixture()
	planID := f.addPlan(t, map[string]domain.PlannedWorkout{
		"monday":    runWorkout(),
		"wednesday": runWorkout(),
		"friday":    runWorkout(),
	})
	ctx := context.Background()
	require.NoError(t, f.matchRepo.Save(ctx, &domain.ActivityPlanMatch{
		ActivityID: 1, PlanID: planID, WorkoutDay: "monday",
		MatchConfidence: 90, MatchType: domain.MatchTypeAutomatic,
	}))

	plan, err := f.planRepo.GetByID(ctx, planID)
	require.NoError(t, err)
	stats, err := f.svc.RecomputeCompletion(ctx, plan)
	require.NoError(t, err)
	require.Equal(t, 33.3, stats.Percentage)
}

func TestMatchWithNoActivePlans(t *testing.T) {
	f := newMatcherFixture()
	f.addActivity(t, 101, "Run", weekStart.Add(8*time.Hour), 5000, 1500, 3.3333)
	require.Equal(t, 0, f.match(t))
}
