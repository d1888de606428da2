// internal/repository/mongo/activity_repo.go
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

const activityCollectionName = "activities"

// mongoActivityRepository implements repository.ActivityRepository.
// It also reads the match collection to answer the "unclaimed" query:
// an activity already present in any match row is excluded from the
// matcher's candidate pool, system-wide.
type mongoActivityRepository struct {
	collection      *mongo.Collection
	matchCollection *mongo.Collection
}

// NewMongoActivityRepository creates a new activity repository.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection:      db.Collection(activityCollectionName),
		matchCollection: db.Collection(matchCollectionName),
	}
}

// Upsert inserts the activity or replaces the stored copy with the same
// stravaId. Re-syncing an overlapping window is therefore idempotent.
func (r *mongoActivityRepository) Upsert(ctx context.Context, activity *domain.Activity) error {
	if activity.StravaID == 0 || activity.MenteeID == primitive.NilObjectID {
		return errors.New("activity requires stravaId and menteeId")
	}
	if activity.SyncedAt.IsZero() {
		activity.SyncedAt = time.Now().UTC()
	}

	filter := bson.M{"stravaId": activity.StravaID}
	updateDoc := bson.M{
		"$set": bson.M{
			"menteeId":        activity.MenteeID,
			"name":            activity.Name,
			"activityType":    activity.ActivityType,
			"distanceM":       activity.DistanceM,
			"movingTimeS":     activity.MovingTimeS,
			"averageSpeedMps": activity.AverageSpeedMps,
			"startDate":       activity.StartDate,
			"syncedAt":        activity.SyncedAt,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, updateDoc, options.Update().SetUpsert(true))
	return err
}

// GetByStravaID retrieves a single activity by its provider id.
func (r *mongoActivityRepository) GetByStravaID(ctx context.Context, stravaID int64) (*domain.Activity, error) {
	var activity domain.Activity
	filter := bson.M{"stravaId": stravaID}

	err := r.collection.FindOne(ctx, filter).Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetUnclaimedInRange returns the mentee's activities inside [from, to]
// that have no match row anywhere in the system, ordered by startDate
// ascending. Ascending order matters: the matcher's tie-break keeps the
// first maximum it encounters.
func (r *mongoActivityRepository) GetUnclaimedInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	// Collect the globally claimed activity ids first, then exclude them.
	claimedRaw, err := r.matchCollection.Distinct(ctx, "activityId", bson.M{})
	if err != nil {
		return nil, err
	}
	claimed := make([]int64, 0, len(claimedRaw))
	for _, v := range claimedRaw {
		switch id := v.(type) {
		case int64:
			claimed = append(claimed, id)
		case int32:
			claimed = append(claimed, int64(id))
		}
	}

	filter := bson.M{
		"menteeId":  menteeID,
		"startDate": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	if len(claimed) > 0 {
		filter["stravaId"] = bson.M{"$nin": claimed}
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var activities []domain.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetByMenteeInRange returns all of the mentee's activities inside
// [from, to], claimed or not, ordered by startDate ascending.
func (r *mongoActivityRepository) GetByMenteeInRange(ctx context.Context, menteeID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	filter := bson.M{
		"menteeId":  menteeID,
		"startDate": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var activities []domain.Activity
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// EnsureActivityIndexes creates necessary indexes. Call during startup.
func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Provider id is the upsert key
			Keys:    bson.D{{Key: "stravaId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Candidate pool query: mentee's activities within a week
			Keys:    bson.D{{Key: "menteeId", Value: 1}, {Key: "startDate", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
