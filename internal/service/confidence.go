// internal/service/confidence.go
package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"math"
	"strconv"
	"strings"
)

// Confidence scoring for activity-to-workout matching.
//
// The score is a weighted sum of five independent factors, clamped to
// [0,100]: activity type (max 35), distance (25), duration (20),
// time of day (10) and pace (10). The band thresholds and point values
// below are business rules; the coach dashboard's completion numbers
// depend on them, so they must not be "tidied up".

// primaryActivityTypes maps a planned workout category to the Strava
// sport types that count as an exact match (full 35 points).
var primaryActivityTypes = map[string][]string{
	"run":            {"Run", "VirtualRun", "TrailRun"},
	"bike":           {"Ride", "VirtualRide", "MountainBikeRide", "GravelRide"},
	"swim":           {"Swim"},
	"strength":       {"WeightTraining", "Workout", "Crossfit"},
	"cross_training": {"Workout", "Elliptical", "Rowing", "StairStepper", "Yoga"},
	"walk":           {"Walk", "Hike"},
}

// similarActivityTypes awards partial credit when the recorded sport is
// a close cousin of the planned category (e.g. an e-bike ride against a
// planned bike workout). Values stay within 15–35.
var similarActivityTypes = map[string]map[string]int{
	"run":            {"Walk": 15, "Hike": 15},
	"bike":           {"EBikeRide": 25, "Velomobile": 15},
	"walk":           {"Run": 15, "TrailRun": 15, "Snowshoe": 15},
	"strength":       {"Yoga": 20, "Pilates": 20},
	"cross_training": {"WeightTraining": 20, "Swim": 15, "Ride": 15},
}

// runningActivityTypes are the sport types for which pace comparison is
// meaningful; everything else gets flat partial credit on the pace factor.
var runningActivityTypes = map[string]bool{
	"Run":        true,
	"VirtualRun": true,
	"TrailRun":   true,
}

// matchConfidence scores how well an activity fulfills a planned workout.
// Always returns a value in [0,100], including for degenerate inputs
// where every optional field is missing.
func matchConfidence(activity *domain.Activity, workout domain.PlannedWorkout) int {
	score := scoreActivityType(activity.ActivityType, workout.Type)
	score += scoreDistance(activity, workout)
	score += scoreDuration(activity, workout)
	score += scoreTimeOfDay(activity, workout)
	score += scorePace(activity, workout)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// scoreActivityType awards up to 35 points for the sport type factor.
func scoreActivityType(actualType, plannedType string) int {
	for _, t := range primaryActivityTypes[plannedType] {
		if t == actualType {
			return 35
		}
	}
	if partial, ok := similarActivityTypes[plannedType][actualType]; ok {
		return partial
	}
	return 0
}

// scoreDistance awards up to 25 points by percent deviation from the
// planned distance. Missing data on either side earns flat partial credit.
func scoreDistance(activity *domain.Activity, workout domain.PlannedWorkout) int {
	if workout.DistanceKm == nil || *workout.DistanceKm <= 0 || activity.DistanceM <= 0 {
		return 15
	}
	plannedM := *workout.DistanceKm * 1000
	deviation := math.Abs(activity.DistanceM-plannedM) / plannedM * 100

	switch {
	case deviation <= 5:
		return 25
	case deviation <= 10:
		return 22
	case deviation <= 15:
		return 18
	case deviation <= 25:
		return 12
	case deviation <= 40:
		return 8
	default:
		return 0
	}
}

// scoreDuration awards up to 20 points by percent deviation from the
// planned duration.
func scoreDuration(activity *domain.Activity, workout domain.PlannedWorkout) int {
	if workout.DurationMin == nil || *workout.DurationMin <= 0 || activity.MovingTimeS <= 0 {
		return 10
	}
	plannedS := *workout.DurationMin * 60
	deviation := math.Abs(float64(activity.MovingTimeS)-plannedS) / plannedS * 100

	switch {
	case deviation <= 10:
		return 20
	case deviation <= 20:
		return 16
	case deviation <= 30:
		return 12
	case deviation <= 50:
		return 8
	default:
		return 0
	}
}

// scoreTimeOfDay awards up to 10 points from the activity's local start
// hour. Without a preference, common training windows (early morning and
// after work) score highest; with one, only the exact window pays out.
func scoreTimeOfDay(activity *domain.Activity, workout domain.PlannedWorkout) int {
	hour := activity.StartDate.Hour()

	if workout.PreferredTime == "" {
		switch {
		case hour >= 5 && hour <= 11:
			return 8
		case hour >= 17 && hour <= 20:
			return 8
		case hour >= 12 && hour <= 16:
			return 6
		default:
			return 3
		}
	}

	var matched bool
	switch workout.PreferredTime {
	case domain.PreferredTimeMorning:
		matched = hour >= 5 && hour <= 11
	case domain.PreferredTimeAfternoon:
		matched = hour >= 12 && hour <= 16
	case domain.PreferredTimeEvening:
		matched = hour >= 17 && hour <= 20
	}
	if matched {
		return 10
	}
	return 2
}

// scorePace awards up to 10 points comparing seconds-per-km. Only
// meaningful for running-family sports; anything else, and any side with
// missing pace data, earns flat partial credit.
func scorePace(activity *domain.Activity, workout domain.PlannedWorkout) int {
	if !runningActivityTypes[activity.ActivityType] {
		return 5
	}
	if workout.Pace == "" || activity.AverageSpeedMps <= 0 {
		return 5
	}
	plannedSecPerKm := parsePaceToSeconds(workout.Pace)
	if plannedSecPerKm <= 0 {
		// Unparseable pace is treated as no pace data, not an error.
		return 5
	}

	actualSecPerKm := 1000 / activity.AverageSpeedMps
	deviation := math.Abs(actualSecPerKm-plannedSecPerKm) / plannedSecPerKm * 100

	switch {
	case deviation <= 5:
		return 10
	case deviation <= 10:
		return 8
	case deviation <= 20:
		return 6
	case deviation <= 30:
		return 3
	default:
		return 0
	}
}

// paceSuffixes are unit suffixes tolerated (and stripped) on pace strings.
// Longer suffixes come first so "min/km" is not half-stripped by "/km".
var paceSuffixes = []string{"min/km", "min/mi", "/km", "/mi"}

// parsePaceToSeconds converts a coach-entered pace string to seconds per
// kilometer. Accepts "MM:SS", "MM:SS.d" and bare decimal minutes
// (e.g. "5.5"); unit suffixes like "/km" or "min/mi" are stripped.
// Unparseable input yields 0, which callers treat as "no pace data".
func parsePaceToSeconds(pace string) float64 {
	s := strings.ToLower(strings.TrimSpace(pace))
	for _, suffix := range paceSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	if s == "" {
		return 0
	}

	if strings.Contains(s, ":") {
		parts := strings.SplitN(s, ":", 2)
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || minutes < 0 {
			return 0
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || seconds < 0 || seconds >= 60 {
			return 0
		}
		return float64(minutes)*60 + seconds
	}

	// Bare decimal number of minutes
	minutes, err := strconv.ParseFloat(s, 64)
	if err != nil || minutes < 0 {
		return 0
	}
	return minutes * 60
}
