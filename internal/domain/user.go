package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleCoach  Role = "coach"
	RoleMentee Role = "mentee"
)

// StravaCredentials holds the per-mentee Strava API tokens. The OAuth
// authorization flow that produces them lives outside this service; we
// only store the result and refresh it when expired.
type StravaCredentials struct {
	AthleteID    int64     `bson:"athleteId" json:"athleteId"`
	AccessToken  string    `bson:"accessToken" json:"-"` // Never expose tokens via JSON
	RefreshToken string    `bson:"refreshToken" json:"-"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
}

// User represents a user in the system (either a Coach or a Mentee).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Coach-specific ---
	// Stores ObjectIDs of Mentees managed by this Coach.
	MenteeIDs []primitive.ObjectID `bson:"menteeIds,omitempty" json:"menteeIds,omitempty"`

	// --- Mentee-specific ---
	CoachID *primitive.ObjectID `bson:"coachId,omitempty" json:"coachId,omitempty"`
	Strava  *StravaCredentials  `bson:"strava,omitempty" json:"strava,omitempty"`
	// LastSyncedAt marks the upper bound of the last successful activity
	// sync; the next sync fetches activities after this instant.
	LastSyncedAt *time.Time `bson:"lastSyncedAt,omitempty" json:"lastSyncedAt,omitempty"`
}

func (u *User) IsCoach() bool {
	return u.Role == RoleCoach
}

func (u *User) IsMentee() bool {
	return u.Role == RoleMentee
}

// HasStrava reports whether the mentee has linked Strava credentials.
func (u *User) HasStrava() bool {
	return u.Strava != nil && u.Strava.RefreshToken != ""
}
