// Package orchestrator implements the Session Orchestrator (C7): the
// state machine driving a session through pending -> processing ->
// (completed | failed), and the only component permitted to write to the
// Artifact Store (§4.7).
package orchestrator

import (
	"context"
	"time"

	"github.com/clinictrack/emgcore/pkg/models"
)

// Downloader fetches the raw bytes for a session's source file. Sync
// uploads supply bytes directly (no download needed); webhook-triggered
// sessions resolve fileRef against object storage.
type Downloader interface {
	Download(ctx context.Context, fileRef string) ([]byte, error)
}

// SessionResults bundles every write the orchestrator performs at the end
// of a successful ProcessSession run (§5 ordering guarantee: writes become
// visible together).
type SessionResults struct {
	SessionID    string
	Params       models.ProcessingParameters
	Analytics    []models.ChannelAnalytics
	Settings     models.SessionSettings
	BFR          []models.BFRMonitoring
	Scores       models.PerformanceScores
	GameMetadata map[string]string
	SessionDate  time.Time
}

// Store is the Artifact Store façade (C8) the orchestrator writes through.
// Every other component in this system is a pure producer of data; Store
// implementations enforce the relational guarantees of §4.8.
type Store interface {
	// CreateSession inserts a session keyed by contentHash, or returns the
	// existing row (created=false) on hash collision without mutating it
	// (§4.7 idempotent-by-hash, §5 dedup concurrency).
	CreateSession(ctx context.Context, contentHash string, session *models.Session) (result *models.Session, created bool, err error)
	UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus, procErr *models.ProcessingError) error
	WriteResults(ctx context.Context, results SessionResults) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	GetSessionByHash(ctx context.Context, contentHash string) (*models.Session, error)
	GetChannelAnalytics(ctx context.Context, sessionID string) ([]models.ChannelAnalytics, error)
	GetScoringConfiguration(ctx context.Context, id string) (*models.ScoringConfiguration, error)
}

// Cache is the Analytics Cache façade (C9). A cache miss or write failure
// must never surface as a workflow error (§4.9); the orchestrator treats
// every Cache call as best-effort.
type Cache interface {
	Set(ctx context.Context, sessionID string, entry models.AnalyticsCacheEntry) error
	Get(ctx context.Context, sessionID string) (*models.AnalyticsCacheEntry, bool, error)
}
