package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/okian/fixturecast/internal/adapters/upstream"
	"github.com/okian/fixturecast/internal/domain/ingestion"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"
)

// Sync runs one tracked ingestion for job and returns its terminal event.
//
// Upstream data reached through a fallback ends the event degraded. Stale
// cache copies are still written; synthetic and empty payloads are not.
func (s *Service) Sync(ctx context.Context, job model.SyncJob) (*model.IngestionEvent, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if job.Kind == model.SyncPredictions {
		return s.syncPredictions(ctx, job)
	}

	endpoint, err := endpointFor(job)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{"endpoint": endpoint}

	return s.tracker.Track(ctx, string(job.Kind), job.Scope(), meta, func(ctx context.Context) (ingestion.Outcome, error) {
		resp, err := s.client.Fetch(ctx, endpoint)
		if err != nil {
			return ingestion.Outcome{}, err
		}

		out := ingestion.Outcome{
			RetryCount:   resp.Retries,
			FallbackUsed: resp.Degraded(),
			Metadata:     map[string]any{"response_source": string(resp.Source)},
		}
		if resp.Err != nil {
			out.Metadata["upstream_error"] = resp.Err.Error()
		}
		if resp.Source == upstream.SourceSynthetic || resp.Source == upstream.SourceEmpty {
			out.Metadata["write_skipped"] = true
			return out, nil
		}

		records, n, err := s.write(ctx, job, resp.Envelope)
		out.RecordsWritten = n
		if err != nil {
			return out, err
		}
		sum, err := ingestion.Checksum(records)
		if err != nil {
			return out, err
		}
		out.Checksum = sum
		return out, nil
	})
}

// write decodes env for job and upserts every record. It returns what was
// written and how many rows landed before any failure.
func (s *Service) write(ctx context.Context, job model.SyncJob, env upstream.Envelope) (any, int, error) {
	switch job.Kind {
	case model.SyncFixtures, model.SyncLive:
		fixtures, err := upstream.DecodeFixtures(env)
		if err != nil {
			return nil, 0, err
		}
		for i, f := range fixtures {
			if err := s.store.UpdateFixture(ctx, f); err != nil {
				return nil, i, fmt.Errorf("write fixture %d: %w", f.ID, err)
			}
		}
		return fixtures, len(fixtures), nil

	case model.SyncTeams:
		teams, err := upstream.DecodeTeams(env)
		if err != nil {
			return nil, 0, err
		}
		for i, t := range teams {
			if err := s.store.UpdateTeam(ctx, t); err != nil {
				return nil, i, fmt.Errorf("write team %d: %w", t.ID, err)
			}
		}
		return teams, len(teams), nil

	case model.SyncLeagues:
		leagues, err := upstream.DecodeLeagues(env, job.Season)
		if err != nil {
			return nil, 0, err
		}
		for i, l := range leagues {
			if err := s.store.UpdateLeague(ctx, l); err != nil {
				return nil, i, fmt.Errorf("write league %d: %w", l.ID, err)
			}
		}
		return leagues, len(leagues), nil

	case model.SyncStandings:
		rows, err := upstream.DecodeStandings(env)
		if err != nil {
			return nil, 0, err
		}
		if len(rows) > 0 {
			if err := s.store.UpdateStandings(ctx, rows); err != nil {
				return nil, 0, fmt.Errorf("write standings: %w", err)
			}
		}
		return rows, len(rows), nil
	}
	return nil, 0, fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
}

// syncPredictions predicts job.FixtureIDs in one batch and stores them.
// Rule fallbacks under a configured model and per-fixture failures degrade
// the event; it fails only when nothing could be predicted.
func (s *Service) syncPredictions(ctx context.Context, job model.SyncJob) (*model.IngestionEvent, error) {
	meta := map[string]any{"requested": len(job.FixtureIDs)}

	return s.tracker.Track(ctx, string(job.Kind), job.Scope(), meta, func(ctx context.Context) (ingestion.Outcome, error) {
		res := s.engine.PredictBatch(ctx, job.FixtureIDs)

		out := ingestion.Outcome{Metadata: map[string]any{"failed": len(res.Errors)}}
		if len(res.Predictions) == 0 {
			return out, fmt.Errorf("%w: %d failed", ErrNothingSynced, len(res.Errors))
		}

		ids := make([]int64, 0, len(res.Predictions))
		for id := range res.Predictions {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		written := make([]model.EnhancedPrediction, 0, len(ids))
		rules := 0
		for _, id := range ids {
			p := res.Predictions[id]
			if err := s.store.UpdatePrediction(ctx, *p); err != nil {
				out.RecordsWritten = len(written)
				return out, fmt.Errorf("write prediction %d: %w", id, err)
			}
			if p.Insights.Source == model.SourceRules {
				rules++
			}
			written = append(written, *p)
		}
		out.RecordsWritten = len(written)
		out.Metadata["rules"] = rules
		out.FallbackUsed = len(res.Errors) > 0 || (s.model != nil && rules > 0)

		for id, err := range res.Errors {
			s.logger.Warn(ctx, "fixture not predicted",
				logger.Int64("fixture", id),
				logger.Error(err),
			)
		}

		sum, err := ingestion.Checksum(probabilitiesOf(written))
		if err != nil {
			return out, err
		}
		out.Checksum = sum
		return out, nil
	})
}

// probabilitiesOf keeps the deterministic part of each prediction so that
// repeated syncs of unchanged inputs share a checksum.
func probabilitiesOf(ps []model.EnhancedPrediction) map[string]model.Probabilities {
	out := make(map[string]model.Probabilities, len(ps))
	for _, p := range ps {
		out[strconv.FormatInt(p.FixtureID, 10)] = p.Probabilities
	}
	return out
}

// endpointFor renders the upstream endpoint a job pulls.
func endpointFor(job model.SyncJob) (string, error) {
	q := url.Values{}
	var path string
	switch job.Kind {
	case model.SyncLive:
		path = "fixtures"
		q.Set("live", "all")
	case model.SyncFixtures:
		path = "fixtures"
		if job.Date != "" {
			q.Set("date", job.Date)
		}
		if job.League != 0 && job.Season != 0 {
			q.Set("league", strconv.FormatInt(job.League, 10))
			q.Set("season", strconv.Itoa(job.Season))
		}
	case model.SyncTeams, model.SyncStandings:
		path = string(job.Kind)
		q.Set("league", strconv.FormatInt(job.League, 10))
		q.Set("season", strconv.Itoa(job.Season))
	case model.SyncLeagues:
		path = "leagues"
		q.Set("season", strconv.Itoa(job.Season))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
	// url.Values.Encode sorts keys, so equal jobs share a cache key.
	return path + "?" + q.Encode(), nil
}
