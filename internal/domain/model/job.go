package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SyncKind selects what a sync job pulls.
type SyncKind string

// Sync kinds.
const (
	SyncFixtures    SyncKind = "fixtures"
	SyncLive        SyncKind = "live"
	SyncTeams       SyncKind = "teams"
	SyncLeagues     SyncKind = "leagues"
	SyncStandings   SyncKind = "standings"
	SyncPredictions SyncKind = "predictions"
)

// SyncJob is one unit of ingestion work.
type SyncJob struct {
	Kind       SyncKind `json:"kind"`
	League     int64    `json:"league,omitempty"`
	Season     int      `json:"season,omitempty"`
	Date       string   `json:"date,omitempty"` // YYYY-MM-DD
	FixtureIDs []int64  `json:"fixtureIds,omitempty"`
}

// Validate checks that the job carries the parameters its kind needs.
func (j SyncJob) Validate() error {
	switch j.Kind {
	case SyncLive:
		return nil
	case SyncFixtures:
		if j.Date == "" && (j.League == 0 || j.Season == 0) {
			return fmt.Errorf("%w: fixtures job needs a date or league and season", ErrInvalidJob)
		}
	case SyncTeams, SyncStandings:
		if j.League == 0 || j.Season == 0 {
			return fmt.Errorf("%w: %s job needs league and season", ErrInvalidJob, j.Kind)
		}
	case SyncLeagues:
		if j.Season == 0 {
			return fmt.Errorf("%w: leagues job needs a season", ErrInvalidJob)
		}
	case SyncPredictions:
		if len(j.FixtureIDs) == 0 {
			return fmt.Errorf("%w: predictions job needs fixture ids", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, j.Kind)
	}
	return nil
}

// Scope renders the job parameters as the ingestion scope string.
func (j SyncJob) Scope() string {
	var parts []string
	if j.League != 0 {
		parts = append(parts, "league="+strconv.FormatInt(j.League, 10))
	}
	if j.Season != 0 {
		parts = append(parts, "season="+strconv.Itoa(j.Season))
	}
	if j.Date != "" {
		parts = append(parts, "date="+j.Date)
	}
	if len(j.FixtureIDs) > 0 {
		ids := make([]string, len(j.FixtureIDs))
		for i, id := range j.FixtureIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		parts = append(parts, "fixtures="+strings.Join(ids, "-"))
	}
	if len(parts) == 0 {
		return string(j.Kind)
	}
	return string(j.Kind) + "?" + strings.Join(parts, "&")
}
