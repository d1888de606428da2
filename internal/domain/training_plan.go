// internal/domain/training_plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus type for the plan lifecycle.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusDraft    PlanStatus = "draft"
	PlanStatusArchived PlanStatus = "archived"
)

// Preferred time-of-day windows a coach can attach to a planned workout.
const (
	PreferredTimeMorning   = "morning"
	PreferredTimeAfternoon = "afternoon"
	PreferredTimeEvening   = "evening"
)

// PlannedWorkout is one day slot inside a weekly plan. All target fields
// are optional; an empty Type means a rest day and is never matched.
type PlannedWorkout struct {
	Type          string   `bson:"type" json:"type"`                                       // "run", "bike", "swim", "strength", "cross_training", "walk" or "" (rest)
	DistanceKm    *float64 `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`       // Target distance
	DurationMin   *float64 `bson:"durationMin,omitempty" json:"durationMin,omitempty"`     // Target duration
	Pace          string   `bson:"pace,omitempty" json:"pace,omitempty"`                   // "MM:SS" or decimal minutes per km
	PreferredTime string   `bson:"preferredTime,omitempty" json:"preferredTime,omitempty"` // morning|afternoon|evening
	Notes         string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// IsRest reports whether this slot is a rest day (no workout planned).
func (w PlannedWorkout) IsRest() bool {
	return w.Type == ""
}

// TrainingPlan represents one coach-authored training week for a mentee.
// WeekStart is Monday-aligned by convention and WeekEnd is always
// WeekStart + 6 days. Completion fields are denormalized onto the plan
// and recomputed every time matching runs for the mentee.
type TrainingPlan struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID   primitive.ObjectID `bson:"coachId" json:"coachId"`   // Who authored the plan
	MenteeID  primitive.ObjectID `bson:"menteeId" json:"menteeId"` // Who the plan is for
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	WeekStart time.Time          `bson:"weekStart" json:"weekStart"`
	WeekEnd   time.Time          `bson:"weekEnd" json:"weekEnd"`
	Status    PlanStatus         `bson:"status" json:"status"`

	// Workouts is keyed by lowercase day name ("monday" .. "sunday").
	// At most one PlannedWorkout per day; absent key = rest day.
	Workouts map[string]PlannedWorkout `bson:"workouts,omitempty" json:"workouts,omitempty"`

	// Cached completion stats, maintained by the matching service.
	CompletionPercentage float64 `bson:"completionPercentage" json:"completionPercentage"`
	WorkoutsCompleted    int     `bson:"workoutsCompleted" json:"workoutsCompleted"`
	WorkoutsPlanned      int     `bson:"workoutsPlanned" json:"workoutsPlanned"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutFor looks up the planned workout for a day slot. The second
// return value is false for rest days (absent slot or empty type).
func (p *TrainingPlan) WorkoutFor(day Weekday) (PlannedWorkout, bool) {
	if p.Workouts == nil {
		return PlannedWorkout{}, false
	}
	w, ok := p.Workouts[day.String()]
	if !ok || w.IsRest() {
		return PlannedWorkout{}, false
	}
	return w, true
}

// PlannedCount returns the number of day slots carrying a real workout.
func (p *TrainingPlan) PlannedCount() int {
	count := 0
	for _, day := range Weekdays {
		if _, ok := p.WorkoutFor(day); ok {
			count++
		}
	}
	return count
}
