// Package repository is the storage boundary for fixtures, reference data,
// predictions and ingestion provenance. Every write is an idempotent upsert
// keyed by the record's natural id.
package repository

import (
	"context"

	"github.com/okian/fixturecast/internal/domain/model"
)

// Store provides read/write access to persisted data.
type Store interface {
	UpdateFixture(ctx context.Context, f model.Fixture) error
	UpdateTeam(ctx context.Context, t model.Team) error
	UpdateLeague(ctx context.Context, l model.League) error
	// UpdateStandings upserts rows keyed by league, season and team.
	UpdateStandings(ctx context.Context, rows []model.Standing) error
	UpdatePrediction(ctx context.Context, p model.EnhancedPrediction) error

	// GetFixture returns ErrNotFound for unknown ids.
	GetFixture(ctx context.Context, id int64) (*model.Fixture, error)
	// GetStandings returns a league table ordered by rank.
	GetStandings(ctx context.Context, leagueID int64, season int) ([]model.Standing, error)
	// GetPredictions returns the stored predictions among ids, in ids order.
	GetPredictions(ctx context.Context, ids []int64) ([]model.EnhancedPrediction, error)
	// GetRecentIngestionEvents returns up to limit events, newest first.
	GetRecentIngestionEvents(ctx context.Context, limit int) ([]model.IngestionEvent, error)

	InsertIngestionEvent(ctx context.Context, e model.IngestionEvent) error
	// FinishIngestionEvent writes the terminal fields of an open event. An
	// event that already finished is left as is and ErrEventFinished returned.
	FinishIngestionEvent(ctx context.Context, e model.IngestionEvent) error

	// Counts reports how many records of each kind are stored.
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Counts is a per-table record count.
type Counts struct {
	Fixtures        int `json:"fixtures"`
	Teams           int `json:"teams"`
	Leagues         int `json:"leagues"`
	Standings       int `json:"standings"`
	Predictions     int `json:"predictions"`
	IngestionEvents int `json:"ingestionEvents"`
}

type standingKey struct {
	league int64
	season int
	team   int64
}

func validFixture(f model.Fixture) bool { return f.ID > 0 }

func validStanding(s model.Standing) bool { return s.LeagueID > 0 && s.Season > 0 && s.TeamID > 0 }
