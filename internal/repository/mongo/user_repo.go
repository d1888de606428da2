package mongo

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository" // Import the repository interfaces package
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	// Basic validation; more robust validation belongs in the service layer.
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errors.New("user with this email already exists")
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	filter := bson.M{"email": email}

	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AddMenteeIDToCoach adds a mentee's ID to a coach's MenteeIDs array.
func (r *mongoUserRepository) AddMenteeIDToCoach(ctx context.Context, coachID, menteeID primitive.ObjectID) error {
	filter := bson.M{"_id": coachID, "role": domain.RoleCoach}
	update := bson.M{
		"$addToSet": bson.M{"menteeIds": menteeID}, // $addToSet prevents duplicates
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	// ModifiedCount may be 0 if the mentee was already in the set, which is fine.
	return nil
}

// GetMenteesByCoachID retrieves all mentee users managed by a specific coach.
func (r *mongoUserRepository) GetMenteesByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	coach, err := r.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("coach not found")
		}
		return nil, err
	}
	if !coach.IsCoach() {
		return nil, errors.New("user is not a coach")
	}
	if len(coach.MenteeIDs) == 0 {
		return []domain.User{}, nil
	}

	var mentees []domain.User
	filter := bson.M{"_id": bson.M{"$in": coach.MenteeIDs}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &mentees); err != nil {
		return nil, err
	}
	return mentees, nil
}

// SetCoachForMentee assigns a coach to a mentee user.
func (r *mongoUserRepository) SetCoachForMentee(ctx context.Context, menteeID, coachID primitive.ObjectID) error {
	filter := bson.M{"_id": menteeID, "role": domain.RoleMentee}
	update := bson.M{
		"$set": bson.M{"coachId": coachID, "updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetMenteesWithStrava retrieves all mentees carrying linked Strava
// credentials. The scheduled sync job iterates over this list.
func (r *mongoUserRepository) GetMenteesWithStrava(ctx context.Context) ([]domain.User, error) {
	var mentees []domain.User
	filter := bson.M{
		"role":                domain.RoleMentee,
		"strava.refreshToken": bson.M{"$exists": true, "$ne": ""},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &mentees); err != nil {
		return nil, err
	}
	return mentees, nil
}

// UpdateStravaCredentials stores refreshed Strava tokens for a mentee.
func (r *mongoUserRepository) UpdateStravaCredentials(ctx context.Context, menteeID primitive.ObjectID, creds *domain.StravaCredentials) error {
	if creds == nil {
		return errors.New("strava credentials are required")
	}
	filter := bson.M{"_id": menteeID, "role": domain.RoleMentee}
	update := bson.M{
		"$set": bson.M{"strava": creds, "updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetLastSyncedAt records the upper bound of the last successful sync.
func (r *mongoUserRepository) SetLastSyncedAt(ctx context.Context, menteeID primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": menteeID}
	update := bson.M{
		"$set": bson.M{"lastSyncedAt": at.UTC(), "updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes. Call during startup.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index(),
		},
		{
			// Scheduled sync looks up mentees by linked Strava athlete id.
			Keys:    bson.D{{Key: "strava.athleteId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
