// internal/domain/sync_archive.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncArchive records one raw Strava response page stored in object
// storage. The payload itself lives under ObjectKey; this row makes it
// discoverable for coach review and for retention pruning.
type SyncArchive struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MenteeID   primitive.ObjectID `bson:"menteeId" json:"menteeId"`
	ObjectKey  string             `bson:"objectKey" json:"objectKey"`
	SizeBytes  int                `bson:"sizeBytes" json:"sizeBytes"`
	ArchivedAt time.Time          `bson:"archivedAt" json:"archivedAt"`
}
