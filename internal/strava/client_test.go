package strava

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSummaryActivityToDomain(t *testing.T) {
	local := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)
	utc := local.Add(-5 * time.Hour)

	a := SummaryActivity{
		ID:             12345,
		Name:           "Morning Run",
		SportType:      "TrailRun",
		Type:           "Run",
		Distance:       5012.3,
		MovingTime:     1498,
		AverageSpeed:   3.34,
		StartDate:      utc,
		StartDateLocal: local,
	}

	activity := a.ToDomain()
	require.Equal(t, int64(12345), activity.StravaID)
	require.Equal(t, "TrailRun", activity.ActivityType, "sport_type wins over legacy type")
	require.Equal(t, local, activity.StartDate, "local start keeps day grouping on the athlete's calendar")
	require.Equal(t, 5012.3, activity.DistanceM)
	require.Equal(t, 1498, activity.MovingTimeS)
	require.Equal(t, "2024-01-16", activity.LocalDateKey())
}

func TestSummaryActivityLegacyFallbacks(t *testing.T) {
	utc := time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC)

	a := SummaryActivity{ID: 1, Type: "Ride", StartDate: utc}
	activity := a.ToDomain()
	require.Equal(t, "Ride", activity.ActivityType, "legacy type fills in when sport_type is absent")
	require.Equal(t, utc, activity.StartDate)
}

func TestSummaryActivityDecoding(t *testing.T) {
	payload := `[{
		"id": 987654321,
		"name": "Lunch Ride",
		"sport_type": "GravelRide",
		"type": "Ride",
		"distance": 40210.5,
		"moving_time": 5403,
		"average_speed": 7.44,
		"start_date": "2024-01-16T11:02:17Z",
		"start_date_local": "2024-01-16T12:02:17Z",
		"total_elevation_gain": 312.0
	}]`

	var activities []SummaryActivity
	require.NoError(t, json.Unmarshal([]byte(payload), &activities))
	require.Len(t, activities, 1)
	require.Equal(t, int64(987654321), activities[0].ID)
	require.Equal(t, "GravelRide", activities[0].SportType)
	require.Equal(t, 5403, activities[0].MovingTime)
	require.Equal(t, 12, activities[0].StartDateLocal.Hour())
}
