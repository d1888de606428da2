// internal/domain/activity.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity is one completed exercise session synced from Strava.
// Activities are immutable once synced; matching never mutates them.
// StravaID is the provider's numeric activity id and is the global key
// used by match rows (one match per activity system-wide).
type Activity struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StravaID        int64              `bson:"stravaId" json:"stravaId"` // Unique provider id
	MenteeID        primitive.ObjectID `bson:"menteeId" json:"menteeId"`
	Name            string             `bson:"name,omitempty" json:"name,omitempty"`
	ActivityType    string             `bson:"activityType" json:"activityType"` // Provider vocabulary: "Run", "Ride", "VirtualRun", ...
	DistanceM       float64            `bson:"distanceM" json:"distanceM"`
	MovingTimeS     int                `bson:"movingTimeS" json:"movingTimeS"`
	AverageSpeedMps float64            `bson:"averageSpeedMps" json:"averageSpeedMps"`
	StartDate       time.Time          `bson:"startDate" json:"startDate"`
	SyncedAt        time.Time          `bson:"syncedAt" json:"syncedAt"`
}

// LocalDateKey returns the activity's calendar date in "2006-01-02" form.
// Day-grouping during matching uses this key; an activity can only
// satisfy a workout planned for its exact calendar date.
func (a *Activity) LocalDateKey() string {
	return a.StartDate.Format("2006-01-02")
}
