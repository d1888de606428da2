// internal/repository/mongo/plan_repo.go
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

const planCollectionName = "training_plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new training plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Create inserts a new training plan.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.MenteeID == primitive.NilObjectID || plan.CoachID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan requires menteeId and coachId")
	}
	if plan.WeekStart.IsZero() {
		return primitive.NilObjectID, errors.New("plan requires weekStart")
	}

	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByMenteeAndCoachID retrieves all plans for a specific mentee created by a specific coach.
func (r *mongoPlanRepository) GetByMenteeAndCoachID(ctx context.Context, menteeID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	var plans []domain.TrainingPlan
	// Filter ensures coach ownership and correct mentee association
	filter := bson.M{
		"menteeId": menteeID,
		"coachId":  coachID,
	}
	// Newest training week first
	findOptions := options.Find().SetSort(bson.D{{Key: "weekStart", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	// Return empty slice if no plans found (not an error)
	return plans, nil
}

// GetByMenteeID retrieves all plans for a mentee regardless of coach.
func (r *mongoPlanRepository) GetByMenteeID(ctx context.Context, menteeID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	var plans []domain.TrainingPlan
	filter := bson.M{"menteeId": menteeID}
	findOptions := options.Find().SetSort(bson.D{{Key: "weekStart", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetActivePlansSince retrieves the mentee's active plans whose week starts
// on or after sinceDate, ordered by weekStart ascending. This is the
// matcher's entry query.
func (r *mongoPlanRepository) GetActivePlansSince(ctx context.Context, menteeID primitive.ObjectID, sinceDate time.Time) ([]domain.TrainingPlan, error) {
	var plans []domain.TrainingPlan
	filter := bson.M{
		"menteeId":  menteeID,
		"status":    domain.PlanStatusActive,
		"weekStart": bson.M{"$gte": sinceDate.UTC()},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "weekStart", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// UpdateWorkouts replaces the plan's day-keyed workout map. Callers are
// expected to trigger a rematch afterwards.
func (r *mongoPlanRepository) UpdateWorkouts(ctx context.Context, planID primitive.ObjectID, workouts map[string]domain.PlannedWorkout) error {
	if planID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}

	filter := bson.M{"_id": planID}
	updateDoc := bson.M{
		"$set": bson.M{
			"workouts":  workouts,
			"updatedAt": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateCompletionStats writes the cached completion numbers onto the plan.
func (r *mongoPlanRepository) UpdateCompletionStats(ctx context.Context, planID primitive.ObjectID, percentage float64, completed, planned int) error {
	filter := bson.M{"_id": planID}
	updateDoc := bson.M{
		"$set": bson.M{
			"completionPercentage": percentage,
			"workoutsCompleted":    completed,
			"workoutsPlanned":      planned,
			"updatedAt":            time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a plan, ensuring it belongs to the given coach.
func (r *mongoPlanRepository) Delete(ctx context.Context, planID, coachID primitive.ObjectID) error {
	if planID == primitive.NilObjectID || coachID == primitive.NilObjectID {
		return errors.New("plan ID and coach ID are required for deletion")
	}

	filter := bson.M{
		"_id":     planID,
		"coachId": coachID,
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		// Either the plan didn't exist or it belongs to another coach.
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Matcher entry query: active plans for a mentee in a date range
			Keys:    bson.D{{Key: "menteeId", Value: 1}, {Key: "status", Value: 1}, {Key: "weekStart", Value: 1}},
			Options: options.Index(),
		},
		{
			// Coach dashboards: plans for a mentee by a coach
			Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "menteeId", Value: 1}},
			Options: options.Index(),
		},
		{
			// One plan per mentee per training week
			Keys:    bson.D{{Key: "menteeId", Value: 1}, {Key: "weekStart", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
