// Package testutil provides shared in-memory fakes for the orchestrator's
// Store/Cache/Downloader interfaces, reused across package test suites that
// need a working orchestrator without a real Postgres/Redis/object-storage
// backend.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/clinictrack/emgcore/internal/orchestrator"
	"github.com/clinictrack/emgcore/pkg/models"
)

// FakeStore is an in-memory orchestrator.Store keyed by content hash and ID.
type FakeStore struct {
	mu        sync.Mutex
	byHash    map[string]*models.Session
	byID      map[string]*models.Session
	results   map[string]orchestrator.SessionResults
	analytics map[string][]models.ChannelAnalytics
	nextID    int
}

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		byHash:    map[string]*models.Session{},
		byID:      map[string]*models.Session{},
		results:   map[string]orchestrator.SessionResults{},
		analytics: map[string][]models.ChannelAnalytics{},
	}
}

var _ orchestrator.Store = (*FakeStore)(nil)

func (s *FakeStore) CreateSession(_ context.Context, contentHash string, session *models.Session) (*models.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byHash[contentHash]; ok {
		return existing, false, nil
	}
	s.nextID++
	clone := *session
	clone.ID = string(rune('a' + s.nextID))
	s.byHash[contentHash] = &clone
	s.byID[clone.ID] = &clone
	return &clone, true, nil
}

func (s *FakeStore) UpdateStatus(_ context.Context, sessionID string, status models.SessionStatus, procErr *models.ProcessingError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return errors.New("testutil: session not found")
	}
	sess.Status = status
	sess.ProcessingErrorMessage = procErr
	return nil
}

func (s *FakeStore) WriteResults(_ context.Context, results orchestrator.SessionResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[results.SessionID] = results
	s.analytics[results.SessionID] = results.Analytics
	return nil
}

func (s *FakeStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return nil, errors.New("testutil: session not found")
	}
	return sess, nil
}

func (s *FakeStore) GetSessionByHash(_ context.Context, contentHash string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHash[contentHash]
	if !ok {
		return nil, errors.New("testutil: session not found")
	}
	return sess, nil
}

func (s *FakeStore) GetChannelAnalytics(_ context.Context, sessionID string) ([]models.ChannelAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics[sessionID], nil
}

func (s *FakeStore) GetScoringConfiguration(_ context.Context, id string) (*models.ScoringConfiguration, error) {
	cfg := models.DefaultScoringConfiguration()
	cfg.ID = id
	return &cfg, nil
}

// Sessions returns a snapshot of every session currently held, keyed by ID —
// useful for operator-console style listings in tests.
func (s *FakeStore) Sessions() []*models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Session, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, sess)
	}
	return out
}

// FakeCache is a best-effort in-memory orchestrator.Cache.
type FakeCache struct {
	mu      sync.Mutex
	entries map[string]models.AnalyticsCacheEntry
}

// NewFakeCache returns an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{entries: map[string]models.AnalyticsCacheEntry{}}
}

var _ orchestrator.Cache = (*FakeCache)(nil)

func (c *FakeCache) Set(_ context.Context, sessionID string, entry models.AnalyticsCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = entry
	return nil
}

func (c *FakeCache) Get(_ context.Context, sessionID string) (*models.AnalyticsCacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sessionID]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

// FakeDownloader returns canned bytes (or an error) for a given file
// reference, simulating the object-storage download step.
type FakeDownloader struct {
	BytesByRef map[string][]byte
	Err        error
}

var _ orchestrator.Downloader = (*FakeDownloader)(nil)

func (d *FakeDownloader) Download(_ context.Context, fileRef string) ([]byte, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	return d.BytesByRef[fileRef], nil
}
