package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWeekdayNamesRoundTrip(t *testing.T) {
	for _, day := range Weekdays {
		parsed, ok := ParseWeekday(day.String())
		require.True(t, ok, "name %q must parse back", day)
		require.Equal(t, day, parsed)
	}

	_, ok := ParseWeekday("Monday") // only lowercase is a valid storage key
	require.False(t, ok)
	_, ok = ParseWeekday("someday")
	require.False(t, ok)
	_, ok = ParseWeekday("")
	require.False(t, ok)
}

func TestWeekdayDateWithin(t *testing.T) {
	monday := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	require.Equal(t, monday, Monday.DateWithin(monday))
	require.Equal(t, monday.AddDate(0, 0, 6), Sunday.DateWithin(monday))
	require.Equal(t, time.Wednesday, Wednesday.DateWithin(monday).Weekday())
}

func TestWorkoutForSkipsRestDays(t *testing.T) {
	plan := TrainingPlan{
		Workouts: map[string]PlannedWorkout{
			"monday":  {Type: "run"},
			"tuesday": {}, // explicit rest entry
		},
	}

	_, ok := plan.WorkoutFor(Monday)
	require.True(t, ok)
	_, ok = plan.WorkoutFor(Tuesday)
	require.False(t, ok, "empty type is a rest day")
	_, ok = plan.WorkoutFor(Wednesday)
	require.False(t, ok, "absent slot is a rest day")

	require.Equal(t, 1, plan.PlannedCount())
}
