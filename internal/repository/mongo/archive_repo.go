// internal/repository/mongo/archive_repo.go
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

const archiveCollectionName = "sync_archives"

// mongoArchiveRepository implements repository.ArchiveRepository
type mongoArchiveRepository struct {
	collection *mongo.Collection
}

// NewMongoArchiveRepository creates a new sync archive repository.
func NewMongoArchiveRepository(db *mongo.Database) repository.ArchiveRepository {
	return &mongoArchiveRepository{
		collection: db.Collection(archiveCollectionName),
	}
}

// Create records one archived payload page.
func (r *mongoArchiveRepository) Create(ctx context.Context, archive *domain.SyncArchive) error {
	if archive.MenteeID == primitive.NilObjectID || archive.ObjectKey == "" {
		return errors.New("sync archive requires menteeId and objectKey")
	}
	archive.ID = primitive.NewObjectID()
	if archive.ArchivedAt.IsZero() {
		archive.ArchivedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, archive)
	return err
}

// GetByMenteeID returns the mentee's archive records, newest first.
func (r *mongoArchiveRepository) GetByMenteeID(ctx context.Context, menteeID primitive.ObjectID, limit int) ([]domain.SyncArchive, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "archivedAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"menteeId": menteeID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var archives []domain.SyncArchive
	if err = cursor.All(ctx, &archives); err != nil {
		return nil, err
	}
	return archives, nil
}

// ListOlderThan returns every archive record created before the cutoff.
// The retention pruner deletes the stored object first, then the record.
func (r *mongoArchiveRepository) ListOlderThan(ctx context.Context, before time.Time) ([]domain.SyncArchive, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"archivedAt": bson.M{"$lt": before}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var archives []domain.SyncArchive
	if err = cursor.All(ctx, &archives); err != nil {
		return nil, err
	}
	return archives, nil
}

// Delete removes one archive record.
func (r *mongoArchiveRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureArchiveIndexes creates necessary indexes. Call during startup.
func EnsureArchiveIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Coach archive listings query per mentee, newest first
			Keys:    bson.D{{Key: "menteeId", Value: 1}, {Key: "archivedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Retention pruning scans by age
			Keys:    bson.D{{Key: "archivedAt", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
