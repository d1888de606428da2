// internal/service/sync_service.go
package service

import (
	"alcyxob/strava-coaching/internal/domain"
	"alcyxob/strava-coaching/internal/repository"
	"alcyxob/strava-coaching/internal/storage"
	"alcyxob/strava-coaching/internal/strava"
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sync"
	"time"

	"github.com/google/uuid" // For unique archive object keys
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrMenteeNotFound  = errors.New("mentee not found")
	ErrNotAMentee      = errors.New("user is not a mentee")
	ErrStravaNotLinked = errors.New("mentee has not linked a Strava account")
)

// defaultSyncLookback is how far back the first sync of a mentee reaches.
const defaultSyncLookback = 30 * 24 * time.Hour

// SyncResult summarizes one sync-then-match run for a mentee.
type SyncResult struct {
	ActivitiesSynced int `json:"activitiesSynced"`
	NewMatches       int `json:"newMatches"`
}

// SyncService fetches new Strava activities for a mentee, persists them,
// archives the raw provider responses, and hands off to the matching
// engine. The matcher itself never touches the network; this service is
// the only Strava-facing component.
type SyncService interface {
	// SyncMentee runs a full sync-then-match pass for one mentee.
	// Concurrent calls for the same mentee are serialized.
	SyncMentee(ctx context.Context, menteeID primitive.ObjectID) (*SyncResult, error)

	// SyncAllMentees runs SyncMentee for every mentee with linked Strava
	// credentials. Per-mentee failures are logged, not fatal; the
	// scheduled job should not stop at the first broken token.
	SyncAllMentees(ctx context.Context) error

	// PruneArchives deletes archived payloads older than the retention
	// window: the stored object first, then its record. Returns how many
	// archives were pruned.
	PruneArchives(ctx context.Context, olderThan time.Duration) (int, error)
}

// syncService implements the SyncService interface.
type syncService struct {
	userRepo     repository.UserRepository
	activityRepo repository.ActivityRepository
	archiveRepo  repository.ArchiveRepository
	stravaClient strava.Client
	archive      storage.ArchiveStorage
	matcher      MatchingService

	// Per-mentee locks serialize concurrent sync-then-match runs (e.g. a
	// manual trigger racing the scheduled job) so two runs cannot both
	// see the same activity as unclaimed.
	menteeLocks sync.Map // map[primitive.ObjectID]*sync.Mutex
}

// NewSyncService creates a new instance of syncService.
func NewSyncService(
	userRepo repository.UserRepository,
	activityRepo repository.ActivityRepository,
	archiveRepo repository.ArchiveRepository,
	stravaClient strava.Client,
	archive storage.ArchiveStorage,
	matcher MatchingService,
) SyncService {
	return &syncService{
		userRepo:     userRepo,
		activityRepo: activityRepo,
		archiveRepo:  archiveRepo,
		stravaClient: stravaClient,
		archive:      archive,
		matcher:      matcher,
	}
}

// SyncMentee fetches activities since the mentee's last sync, upserts
// them, archives each raw page, then runs the matcher.
func (s *syncService) SyncMentee(ctx context.Context, menteeID primitive.ObjectID) (*SyncResult, error) {
	lock := s.lockFor(menteeID)
	lock.Lock()
	defer lock.Unlock()

	// 1. Load the mentee and their Strava credentials
	mentee, err := s.userRepo.GetByID(ctx, menteeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMenteeNotFound
		}
		return nil, err
	}
	if !mentee.IsMentee() {
		return nil, ErrNotAMentee
	}
	if !mentee.HasStrava() {
		return nil, ErrStravaNotLinked
	}

	// 2. Determine the fetch window
	after := time.Now().UTC().Add(-defaultSyncLookback)
	if mentee.LastSyncedAt != nil && mentee.LastSyncedAt.After(after) {
		after = *mentee.LastSyncedAt
	}

	// 3. Page through new activities
	creds := mentee.Strava
	synced := 0
	for page := 1; ; page++ {
		activityPage, refreshed, err := s.stravaClient.ListActivities(ctx, creds, after, page)
		if err != nil {
			return nil, fmt.Errorf("fetching activities page %d: %w", page, err)
		}
		if refreshed != nil && refreshed.AccessToken != creds.AccessToken {
			// Persist rotated tokens immediately; losing them strands the mentee.
			if err := s.userRepo.UpdateStravaCredentials(ctx, menteeID, refreshed); err != nil {
				return nil, fmt.Errorf("storing refreshed credentials: %w", err)
			}
			creds = refreshed
		}
		if len(activityPage.Activities) == 0 {
			break
		}

		s.archivePage(ctx, menteeID, activityPage.Raw)

		for _, sa := range activityPage.Activities {
			activity := sa.ToDomain()
			activity.MenteeID = menteeID
			if err := s.activityRepo.Upsert(ctx, &activity); err != nil {
				return nil, fmt.Errorf("storing activity %d: %w", sa.ID, err)
			}
			synced++
		}
	}

	// 4. Record the sync watermark
	if err := s.userRepo.SetLastSyncedAt(ctx, menteeID, time.Now().UTC()); err != nil {
		return nil, err
	}

	// 5. Hand off to the matching engine
	newMatches, err := s.matcher.MatchActivitiesToPlans(ctx, menteeID, nil)
	if err != nil {
		return nil, fmt.Errorf("matching activities: %w", err)
	}

	return &SyncResult{ActivitiesSynced: synced, NewMatches: newMatches}, nil
}

// SyncAllMentees is the scheduled entry point.
func (s *syncService) SyncAllMentees(ctx context.Context) error {
	mentees, err := s.userRepo.GetMenteesWithStrava(ctx)
	if err != nil {
		return fmt.Errorf("listing mentees with strava: %w", err)
	}

	for i := range mentees {
		result, err := s.SyncMentee(ctx, mentees[i].ID)
		if err != nil {
			log.Printf("ERROR: Sync failed for mentee %s: %v", mentees[i].ID.Hex(), err)
			continue
		}
		if result.ActivitiesSynced > 0 || result.NewMatches > 0 {
			log.Printf("Synced mentee %s: %d activities, %d new matches",
				mentees[i].ID.Hex(), result.ActivitiesSynced, result.NewMatches)
		}
	}
	return nil
}

// archivePage stores a raw activities page and records it for listing
// and retention pruning. Archival is best-effort: a storage hiccup must
// not abort the sync.
func (s *syncService) archivePage(ctx context.Context, menteeID primitive.ObjectID, raw []byte) {
	if s.archive == nil || len(raw) == 0 {
		return
	}
	key := path.Join(
		"strava-sync",
		menteeID.Hex(),
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString()+".json",
	)
	if err := s.archive.PutPayload(ctx, key, "application/json", raw); err != nil {
		log.Printf("WARN: Failed to archive sync payload for mentee %s: %v", menteeID.Hex(), err)
		return
	}
	record := &domain.SyncArchive{
		MenteeID:   menteeID,
		ObjectKey:  key,
		SizeBytes:  len(raw),
		ArchivedAt: time.Now().UTC(),
	}
	if err := s.archiveRepo.Create(ctx, record); err != nil {
		// The object is stored but untracked: invisible to listings and
		// to the pruner. Not worth failing the sync over.
		log.Printf("WARN: Failed to record sync archive %s: %v", key, err)
	}
}

// PruneArchives removes archived payloads past the retention window.
func (s *syncService) PruneArchives(ctx context.Context, olderThan time.Duration) (int, error) {
	before := time.Now().UTC().Add(-olderThan)
	stale, err := s.archiveRepo.ListOlderThan(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("listing expired archives: %w", err)
	}

	pruned := 0
	for _, a := range stale {
		// Object first. If the record delete then fails, the record stays
		// and the next run retries; the reverse order would leave an
		// orphaned object nothing points at.
		if err := s.archive.DeleteObject(ctx, a.ObjectKey); err != nil {
			log.Printf("WARN: Failed to delete archived payload %s: %v", a.ObjectKey, err)
			continue
		}
		if err := s.archiveRepo.Delete(ctx, a.ID); err != nil {
			log.Printf("WARN: Failed to delete archive record %s: %v", a.ObjectKey, err)
			continue
		}
		pruned++
	}
	return pruned, nil
}

// lockFor returns the mutex serializing runs for one mentee.
func (s *syncService) lockFor(menteeID primitive.ObjectID) *sync.Mutex {
	actual, _ := s.menteeLocks.LoadOrStore(menteeID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
