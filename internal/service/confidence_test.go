package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

// runActivity builds a Run activity at the given start time with the
// given metrics. Zero values mean "missing".
func runActivity(start time.Time, distanceM float64, movingS int, speedMps float64) domain.Activity {
	return domain.Activity{
		StravaID:        1,
		ActivityType:    "Run",
		DistanceM:       distanceM,
		MovingTimeS:     movingS,
		AverageSpeedMps: speedMps,
		StartDate:       start,
	}
}

func TestMatchConfidencePerfectRun(t *testing.T) {
	// Tuesday morning 5k run at exactly the planned distance, duration
	// and pace, no preferred time: 35 + 25 + 20 + 8 + 10 = 98.
	activity := runActivity(time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC), 5000, 1500, 3.3333)
	workout := domain.PlannedWorkout{
		Type:        "run",
		DistanceKm:  floatPtr(5),
		DurationMin: floatPtr(25),
		Pace:        "5:00",
	}

	require.Equal(t, 98, matchConfidence(&activity, workout))
}

func TestMatchConfidenceBounds(t *testing.T) {
	// Degenerate inputs must still land inside [0,100].
	cases := []struct {
		name     string
		activity domain.Activity
		workout  domain.PlannedWorkout
	}{
		{
			name:     "everything missing",
			activity: domain.Activity{},
			workout:  domain.PlannedWorkout{Type: "run"},
		},
		{
			name:     "wrong type everywhere",
			activity: runActivity(time.Date(2024, 1, 16, 2, 0, 0, 0, time.UTC), 100000, 60, 10),
			workout: domain.PlannedWorkout{
				Type:          "swim",
				DistanceKm:    floatPtr(1),
				DurationMin:   floatPtr(600),
				Pace:          "5:00",
				PreferredTime: domain.PreferredTimeEvening,
			},
		},
		{
			name:     "perfect everything with preferred time",
			activity: runActivity(time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC), 5000, 1500, 3.3333),
			workout: domain.PlannedWorkout{
				Type:          "run",
				DistanceKm:    floatPtr(5),
				DurationMin:   floatPtr(25),
				Pace:          "5:00",
				PreferredTime: domain.PreferredTimeMorning,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score := matchConfidence(&tc.activity, tc.workout)
			require.GreaterOrEqual(t, score, 0)
			require.LessOrEqual(t, score, 100)
		})
	}
}

func TestScoreActivityType(t *testing.T) {
	cases := []struct {
		planned string
		actual  string
		want    int
	}{
		{"run", "Run", 35},
		{"run", "VirtualRun", 35},
		{"run", "TrailRun", 35},
		{"run", "Walk", 15},   // similar, partial credit
		{"run", "Ride", 0},    // unrelated
		{"bike", "Ride", 35},
		{"bike", "EBikeRide", 25}, // similar, partial credit
		{"swim", "Swim", 35},
		{"strength", "WeightTraining", 35},
		{"strength", "Yoga", 20},
		{"walk", "Hike", 35},
		{"walk", "Run", 15},
		{"cross_training", "Elliptical", 35},
		{"", "Run", 0}, // rest-day type never matches anything
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, scoreActivityType(tc.actual, tc.planned),
			"planned=%s actual=%s", tc.planned, tc.actual)
	}
}

func TestScoreDistanceBands(t *testing.T) {
	workout := domain.PlannedWorkout{Type: "run", DistanceKm: floatPtr(10)}

	cases := []struct {
		actualM float64
		want    int
	}{
		{10000, 25}, // 0% deviation
		{10500, 25}, // 5%
		{11000, 22}, // 10%
		{11500, 18}, // 15%
		{12500, 12}, // 25%
		{14000, 8},  // 40%
		{15000, 0},  // >40%
		{6000, 8},   // 40% short
	}
	for _, tc := range cases {
		a := runActivity(time.Now(), tc.actualM, 0, 0)
		require.Equal(t, tc.want, scoreDistance(&a, workout), "actualM=%v", tc.actualM)
	}

	// Missing data on either side earns flat partial credit.
	a := runActivity(time.Now(), 0, 0, 0)
	require.Equal(t, 15, scoreDistance(&a, workout))
	a = runActivity(time.Now(), 10000, 0, 0)
	require.Equal(t, 15, scoreDistance(&a, domain.PlannedWorkout{Type: "run"}))
}

func TestScoreDurationBands(t *testing.T) {
	workout := domain.PlannedWorkout{Type: "run", DurationMin: floatPtr(60)}

	cases := []struct {
		actualS int
		want    int
	}{
		{3600, 20}, // 0%
		{3960, 20}, // 10%
		{4320, 16}, // 20%
		{4680, 12}, // 30%
		{5400, 8},  // 50%
		{5460, 0},  // >50%
		{1800, 8},  // 50% short
	}
	for _, tc := range cases {
		a := runActivity(time.Now(), 0, tc.actualS, 0)
		require.Equal(t, tc.want, scoreDuration(&a, workout), "actualS=%d", tc.actualS)
	}

	a := runActivity(time.Now(), 0, 0, 0)
	require.Equal(t, 10, scoreDuration(&a, workout))
	a = runActivity(time.Now(), 0, 3600, 0)
	require.Equal(t, 10, scoreDuration(&a, domain.PlannedWorkout{Type: "run"}))
}

func TestScoreTimeOfDay(t *testing.T) {
	at := func(hour int) domain.Activity {
		return runActivity(time.Date(2024, 1, 16, hour, 30, 0, 0, time.UTC), 0, 0, 0)
	}

	// No preference: generic training windows.
	noPref := domain.PlannedWorkout{Type: "run"}
	for hour, want := range map[int]int{5: 8, 8: 8, 11: 8, 12: 6, 16: 6, 17: 8, 20: 8, 21: 3, 4: 3, 0: 3} {
		a := at(hour)
		require.Equal(t, want, scoreTimeOfDay(&a, noPref), "hour=%d", hour)
	}

	// With a preference only the exact window pays out.
	morning := domain.PlannedWorkout{Type: "run", PreferredTime: domain.PreferredTimeMorning}
	a := at(7)
	require.Equal(t, 10, scoreTimeOfDay(&a, morning))
	a = at(18)
	require.Equal(t, 2, scoreTimeOfDay(&a, morning))

	evening := domain.PlannedWorkout{Type: "run", PreferredTime: domain.PreferredTimeEvening}
	a = at(18)
	require.Equal(t, 10, scoreTimeOfDay(&a, evening))
	a = at(7)
	require.Equal(t, 2, scoreTimeOfDay(&a, evening))
}

func TestScorePace(t *testing.T) {
	// 3.3333 m/s is almost exactly 5:00 min/km.
	perfect := runActivity(time.Now(), 0, 0, 3.3333)

	cases := []struct {
		name     string
		activity domain.Activity
		workout  domain.PlannedWorkout
		want     int
	}{
		{"exact pace", perfect, domain.PlannedWorkout{Type: "run", Pace: "5:00"}, 10},
		{"10 percent off", perfect, domain.PlannedWorkout{Type: "run", Pace: "4:33"}, 8},
		{"15 percent off", perfect, domain.PlannedWorkout{Type: "run", Pace: "4:20"}, 6},
		{"30 percent off", runActivity(time.Now(), 0, 0, 1000.0 / 234.0), domain.PlannedWorkout{Type: "run", Pace: "3:00"}, 3},
		{"way off", perfect, domain.PlannedWorkout{Type: "run", Pace: "3:00"}, 0},
		{"no planned pace", perfect, domain.PlannedWorkout{Type: "run"}, 5},
		{"no speed data", runActivity(time.Now(), 0, 0, 0), domain.PlannedWorkout{Type: "run", Pace: "5:00"}, 5},
		{"unparseable pace", perfect, domain.PlannedWorkout{Type: "run", Pace: "brisk"}, 5},
		{
			"non running activity",
			domain.Activity{ActivityType: "Ride", AverageSpeedMps: 8},
			domain.PlannedWorkout{Type: "bike", Pace: "5:00"},
			5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, scorePace(&tc.activity, tc.workout))
		})
	}
}

func TestParsePaceToSeconds(t *testing.T) {
	cases := []struct {
		input string
		want  float64
	}{
		{"5:00", 300},
		{"4:45", 285},
		{"5:30.5", 330.5},
		{"5.5", 330},    // bare decimal minutes
		{"6", 360},
		{"5:00/km", 300},
		{"5:00/mi", 300}, // unit is stripped, not converted
		{"5:00 min/km", 300},
		{"4:45min/mi", 285},
		{"  5:00  ", 300},
		{"", 0},
		{"brisk", 0},
		{"5:75", 0},  // seconds out of range
		{"-5", 0},
		{"-1:30", 0},
		{"/km", 0},
	}

	for _, tc := range cases {
		require.InDelta(t, tc.want, parsePaceToSeconds(tc.input), 1e-9, "input=%q", tc.input)
	}
}
