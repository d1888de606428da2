package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned download URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ArchiveStorage defines the interface for archiving raw Strava sync
// payloads. Every fetched activities page is stored verbatim so a sync
// or matching run can be audited (or replayed) later.
type ArchiveStorage interface {
	// PutPayload stores a raw response body under the given object key.
	PutPayload(ctx context.Context, objectKey string, contentType string, payload []byte) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET
	// requests for an archived payload directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an archived payload.
	DeleteObject(ctx context.Context, objectKey string) error
}
