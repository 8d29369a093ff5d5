package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/fixturecast/internal/domain/model"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu            sync.RWMutex
	fixtures      map[int64]model.Fixture
	teams         map[int64]model.Team
	leagues       map[int64]model.League
	standings     map[standingKey]model.Standing
	predictions   map[int64]model.EnhancedPrediction
	events        []model.IngestionEvent // insertion order
	eventIndex    map[string]int
	eventCapacity int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		fixtures:      make(map[int64]model.Fixture),
		teams:         make(map[int64]model.Team),
		leagues:       make(map[int64]model.League),
		standings:     make(map[standingKey]model.Standing),
		predictions:   make(map[int64]model.EnhancedPrediction),
		eventIndex:    make(map[string]int),
		eventCapacity: DefaultEventCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) UpdateFixture(_ context.Context, f model.Fixture) error {
	if !validFixture(f) {
		return fmt.Errorf("%w: fixture id %d", ErrInvalidRecord, f.ID)
	}
	s.mu.Lock()
	s.fixtures[f.ID] = f
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateTeam(_ context.Context, t model.Team) error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: team id %d", ErrInvalidRecord, t.ID)
	}
	s.mu.Lock()
	s.teams[t.ID] = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateLeague(_ context.Context, l model.League) error {
	if l.ID <= 0 {
		return fmt.Errorf("%w: league id %d", ErrInvalidRecord, l.ID)
	}
	s.mu.Lock()
	s.leagues[l.ID] = l
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateStandings(_ context.Context, rows []model.Standing) error {
	for _, r := range rows {
		if !validStanding(r) {
			return fmt.Errorf("%w: standing %d/%d/%d", ErrInvalidRecord, r.LeagueID, r.Season, r.TeamID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.standings[standingKey{r.LeagueID, r.Season, r.TeamID}] = r
	}
	return nil
}

func (s *MemoryStore) UpdatePrediction(_ context.Context, p model.EnhancedPrediction) error {
	if p.FixtureID <= 0 {
		return fmt.Errorf("%w: prediction fixture id %d", ErrInvalidRecord, p.FixtureID)
	}
	s.mu.Lock()
	s.predictions[p.FixtureID] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetFixture(_ context.Context, id int64) (*model.Fixture, error) {
	s.mu.RLock()
	f, ok := s.fixtures[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: fixture %d", ErrNotFound, id)
	}
	return &f, nil
}

func (s *MemoryStore) GetStandings(_ context.Context, leagueID int64, season int) ([]model.Standing, error) {
	s.mu.RLock()
	out := make([]model.Standing, 0)
	for k, r := range s.standings {
		if k.league == leagueID && k.season == season {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.Standing) int {
		if a.Rank != b.Rank {
			return cmp.Compare(a.Rank, b.Rank)
		}
		return cmp.Compare(a.TeamID, b.TeamID)
	})
	return out, nil
}

func (s *MemoryStore) GetPredictions(_ context.Context, ids []int64) ([]model.EnhancedPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EnhancedPrediction, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.predictions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetRecentIngestionEvents(_ context.Context, limit int) ([]model.IngestionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]model.IngestionEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneEvent(s.events[i]))
	}
	return out, nil
}

func (s *MemoryStore) InsertIngestionEvent(_ context.Context, e model.IngestionEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: ingestion event without id", ErrInvalidRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.eventIndex[e.ID]; ok {
		if s.events[i].Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrEventFinished, e.ID)
		}
		s.events[i] = cloneEvent(e)
		return nil
	}
	s.events = append(s.events, cloneEvent(e))
	s.eventIndex[e.ID] = len(s.events) - 1
	if len(s.events) > s.eventCapacity {
		s.compact()
	}
	return nil
}

func (s *MemoryStore) FinishIngestionEvent(_ context.Context, e model.IngestionEvent) error {
	if !e.Status.Terminal() {
		return fmt.Errorf("%w: finish with non-terminal status %q", ErrInvalidRecord, e.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.eventIndex[e.ID]
	if !ok {
		return fmt.Errorf("%w: ingestion event %s", ErrNotFound, e.ID)
	}
	if s.events[i].Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrEventFinished, e.ID)
	}
	s.events[i] = cloneEvent(e)
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Fixtures:        len(s.fixtures),
		Teams:           len(s.teams),
		Leagues:         len(s.leagues),
		Standings:       len(s.standings),
		Predictions:     len(s.predictions),
		IngestionEvents: len(s.events),
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// compact drops the oldest events beyond capacity. Caller holds mu.
func (s *MemoryStore) compact() {
	drop := len(s.events) - s.eventCapacity
	for _, e := range s.events[:drop] {
		delete(s.eventIndex, e.ID)
	}
	s.events = append([]model.IngestionEvent(nil), s.events[drop:]...)
	for i, e := range s.events {
		s.eventIndex[e.ID] = i
	}
}

func cloneEvent(e model.IngestionEvent) model.IngestionEvent {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
