// internal/domain/match.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchType distinguishes engine-created matches from operator overrides.
type MatchType string

const (
	MatchTypeAutomatic MatchType = "automatic"
	MatchTypeManual    MatchType = "manual"
)

// ActivityPlanMatch assigns one completed Activity to one planned workout
// day within a plan. An activity id appears in at most one match row
// system-wide at any time; re-matching deletes prior rows for the
// activity before inserting. Rows are never updated in place.
type ActivityPlanMatch struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActivityID      int64              `bson:"activityId" json:"activityId"` // Strava activity id, globally unique across matches
	PlanID          primitive.ObjectID `bson:"planId" json:"planId"`
	WorkoutDay      string             `bson:"workoutDay" json:"workoutDay"` // Lowercase day name, see Weekday
	MatchConfidence int                `bson:"matchConfidence" json:"matchConfidence"` // 0-100
	MatchType       MatchType          `bson:"matchType" json:"matchType"`
	MatchedAt       time.Time          `bson:"matchedAt" json:"matchedAt"`
}

// IsManual reports whether this row came from an operator override.
// Manual rows survive re-matching.
func (m *ActivityPlanMatch) IsManual() bool {
	return m.MatchType == MatchTypeManual
}
