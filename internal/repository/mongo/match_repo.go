// internal/repository/mongo/match_repo.go
package mongo

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const matchCollectionName = "activity_plan_matches"

// mongoMatchRepository implements repository.MatchRepository
type mongoMatchRepository struct {
	collection *mongo.Collection
}

// NewMongoMatchRepository creates a new match repository.
func NewMongoMatchRepository(db *mongo.Database) repository.MatchRepository {
	return &mongoMatchRepository{
		collection: db.Collection(matchCollectionName),
	}
}

// Save persists a match with upsert semantics: any existing row for the
// same activityId (in any plan) is deleted first, then the new row is
// inserted. The unique index on activityId backs this up: if a
// concurrent run claims the same activity between our delete and insert,
// the insert fails with a duplicate key error instead of producing a
// second row for the activity.
func (r *mongoMatchRepository) Save(ctx context.Context, match *domain.ActivityPlanMatch) error {
	if match.ActivityID == 0 || match.PlanID == primitive.NilObjectID || match.WorkoutDay == "" {
		return errors.New("match requires activityId, planId, and workoutDay")
	}
	if match.MatchType == "" {
		match.MatchType = domain.MatchTypeAutomatic
	}

	// Global exclusivity: an activity belongs to at most one match row.
	if _, err := r.collection.DeleteMany(ctx, bson.M{"activityId": match.ActivityID}); err != nil {
		return err
	}

	match.ID = primitive.NewObjectID()
	match.MatchedAt = time.Now().UTC()

	_, err := r.collection.InsertOne(ctx, match)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateClaim
		}
		return err
	}
	return nil
}

// GetByPlanID retrieves all match rows for a plan. Day order is not
// guaranteed; callers sort by workout day if they need it.
func (r *mongoMatchRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.ActivityPlanMatch, error) {
	var matches []domain.ActivityPlanMatch
	filter := bson.M{"planId": planID}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// GetByActivityID retrieves the single match row claiming an activity.
func (r *mongoMatchRepository) GetByActivityID(ctx context.Context, activityID int64) (*domain.ActivityPlanMatch, error) {
	var match domain.ActivityPlanMatch
	filter := bson.M{"activityId": activityID}

	err := r.collection.FindOne(ctx, filter).Decode(&match)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// DeleteByPlan removes match rows for a plan. An empty typeFilter deletes
// all of them; passing domain.MatchTypeAutomatic preserves manual
// overrides, which is what rematching relies on.
func (r *mongoMatchRepository) DeleteByPlan(ctx context.Context, planID primitive.ObjectID, typeFilter domain.MatchType) error {
	filter := bson.M{"planId": planID}
	if typeFilter != "" {
		filter["matchType"] = typeFilter
	}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// DeleteByPlanAndDay clears whatever row occupies one plan day.
func (r *mongoMatchRepository) DeleteByPlanAndDay(ctx context.Context, planID primitive.ObjectID, workoutDay string) error {
	filter := bson.M{"planId": planID, "workoutDay": workoutDay}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// DeleteByActivityAndPlan removes one specific match unconditionally.
func (r *mongoMatchRepository) DeleteByActivityAndPlan(ctx context.Context, activityID int64, planID primitive.ObjectID) error {
	filter := bson.M{"activityId": activityID, "planId": planID}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// CountWithMinConfidence counts a plan's rows at or above the given
// confidence. The completion aggregator calls this with threshold 50.
func (r *mongoMatchRepository) CountWithMinConfidence(ctx context.Context, planID primitive.ObjectID, minConfidence int) (int, error) {
	filter := bson.M{
		"planId":          planID,
		"matchConfidence": bson.M{"$gte": minConfidence},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// EnsureMatchIndexes creates necessary indexes. Call during startup.
// The unique index on activityId alone (not just the compound) enforces
// the system-wide one-match-per-activity invariant at the schema level,
// closing the check-then-act window between concurrent matching runs.
func EnsureMatchIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "activityId", Value: 1}, {Key: "planId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Completion recompute and coach match listings query by plan
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "matchConfidence", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
