package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported dialects, named after their database/sql drivers.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLStore is a Store over Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
	maxOpen int
	maxIdle int
	logger  logger.Logger
}

// OpenSQL opens dsn with the dialect's driver, applies the schema and
// returns the store.
func OpenSQL(ctx context.Context, dialect, dsn string, opts ...SQLOption) (*SQLStore, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := NewSQLStore(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database handle and migrates it.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect string, opts ...SQLOption) (*SQLStore, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	s := &SQLStore{
		db:      db,
		dialect: dialect,
		maxOpen: defaultMaxOpenConns,
		maxIdle: defaultMaxIdleConns,
		logger:  logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if dialect == DialectSQLite {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpen)
		db.SetMaxIdleConns(s.maxIdle)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "sql store ready", logger.String("dialect", dialect))
	return s, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS fixtures (
		id BIGINT PRIMARY KEY,
		league_id BIGINT NOT NULL DEFAULT 0,
		season INTEGER NOT NULL DEFAULT 0,
		home_team_id BIGINT NOT NULL DEFAULT 0,
		away_team_id BIGINT NOT NULL DEFAULT 0,
		home_team TEXT NOT NULL DEFAULT '',
		away_team TEXT NOT NULL DEFAULT '',
		kickoff_ms BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		venue TEXT NOT NULL DEFAULT '',
		home_goals INTEGER,
		away_goals INTEGER,
		updated_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fixtures_league_season ON fixtures(league_id, season)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		founded INTEGER NOT NULL DEFAULT 0,
		venue TEXT NOT NULL DEFAULT '',
		updated_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leagues (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		season INTEGER NOT NULL DEFAULT 0,
		updated_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS standings (
		league_id BIGINT NOT NULL,
		season INTEGER NOT NULL,
		team_id BIGINT NOT NULL,
		team_name TEXT NOT NULL DEFAULT '',
		rank INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		played INTEGER NOT NULL DEFAULT 0,
		win INTEGER NOT NULL DEFAULT 0,
		draw INTEGER NOT NULL DEFAULT 0,
		lose INTEGER NOT NULL DEFAULT 0,
		goals_for INTEGER NOT NULL DEFAULT 0,
		goals_against INTEGER NOT NULL DEFAULT 0,
		form TEXT NOT NULL DEFAULT '',
		updated_ms BIGINT NOT NULL,
		PRIMARY KEY (league_id, season, team_id)
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		fixture_id BIGINT PRIMARY KEY,
		payload TEXT NOT NULL,
		generated_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ingestion_events (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_ms BIGINT NOT NULL,
		finished_ms BIGINT,
		duration_ms BIGINT,
		records_written INTEGER,
		fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
		checksum TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingestion_events_started ON ingestion_events(started_ms)`,
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

const upsertFixture = `INSERT INTO fixtures
	(id, league_id, season, home_team_id, away_team_id, home_team, away_team, kickoff_ms, status, venue, home_goals, away_goals, updated_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		league_id = excluded.league_id,
		season = excluded.season,
		home_team_id = excluded.home_team_id,
		away_team_id = excluded.away_team_id,
		home_team = excluded.home_team,
		away_team = excluded.away_team,
		kickoff_ms = excluded.kickoff_ms,
		status = excluded.status,
		venue = excluded.venue,
		home_goals = excluded.home_goals,
		away_goals = excluded.away_goals,
		updated_ms = excluded.updated_ms`

func (s *SQLStore) UpdateFixture(ctx context.Context, f model.Fixture) error {
	if !validFixture(f) {
		return fmt.Errorf("%w: fixture id %d", ErrInvalidRecord, f.ID)
	}
	return s.exec(ctx, upsertFixture,
		f.ID, f.LeagueID, f.Season, f.HomeTeamID, f.AwayTeamID, f.HomeTeam, f.AwayTeam,
		millis(f.Kickoff), f.Status, f.Venue, nullInt(f.HomeGoals), nullInt(f.AwayGoals), nowMillis())
}

const upsertTeam = `INSERT INTO teams (id, name, code, country, founded, venue, updated_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		code = excluded.code,
		country = excluded.country,
		founded = excluded.founded,
		venue = excluded.venue,
		updated_ms = excluded.updated_ms`

func (s *SQLStore) UpdateTeam(ctx context.Context, t model.Team) error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: team id %d", ErrInvalidRecord, t.ID)
	}
	return s.exec(ctx, upsertTeam, t.ID, t.Name, t.Code, t.Country, t.Founded, t.Venue, nowMillis())
}

const upsertLeague = `INSERT INTO leagues (id, name, country, type, season, updated_ms)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		country = excluded.country,
		type = excluded.type,
		season = excluded.season,
		updated_ms = excluded.updated_ms`

func (s *SQLStore) UpdateLeague(ctx context.Context, l model.League) error {
	if l.ID <= 0 {
		return fmt.Errorf("%w: league id %d", ErrInvalidRecord, l.ID)
	}
	return s.exec(ctx, upsertLeague, l.ID, l.Name, l.Country, l.Type, l.Season, nowMillis())
}

const upsertStanding = `INSERT INTO standings
	(league_id, season, team_id, team_name, rank, points, played, win, draw, lose, goals_for, goals_against, form, updated_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (league_id, season, team_id) DO UPDATE SET
		team_name = excluded.team_name,
		rank = excluded.rank,
		points = excluded.points,
		played = excluded.played,
		win = excluded.win,
		draw = excluded.draw,
		lose = excluded.lose,
		goals_for = excluded.goals_for,
		goals_against = excluded.goals_against,
		form = excluded.form,
		updated_ms = excluded.updated_ms`

func (s *SQLStore) UpdateStandings(ctx context.Context, rows []model.Standing) error {
	for _, r := range rows {
		if !validStanding(r) {
			return fmt.Errorf("%w: standing %d/%d/%d", ErrInvalidRecord, r.LeagueID, r.Season, r.TeamID)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertStanding))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := nowMillis()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.LeagueID, r.Season, r.TeamID, r.TeamName, r.Rank, r.Points,
			r.Played, r.Win, r.Draw, r.Lose, r.GoalsFor, r.GoalsAgainst, r.Form, now); err != nil {
			return fmt.Errorf("upsert standing %d: %w", r.TeamID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const upsertPrediction = `INSERT INTO predictions (fixture_id, payload, generated_ms)
	VALUES (?, ?, ?)
	ON CONFLICT (fixture_id) DO UPDATE SET
		payload = excluded.payload,
		generated_ms = excluded.generated_ms`

func (s *SQLStore) UpdatePrediction(ctx context.Context, p model.EnhancedPrediction) error {
	if p.FixtureID <= 0 {
		return fmt.Errorf("%w: prediction fixture id %d", ErrInvalidRecord, p.FixtureID)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	return s.exec(ctx, upsertPrediction, p.FixtureID, string(payload), millis(p.GeneratedAt))
}

func (s *SQLStore) GetFixture(ctx context.Context, id int64) (*model.Fixture, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, league_id, season, home_team_id, away_team_id,
		home_team, away_team, kickoff_ms, status, venue, home_goals, away_goals
		FROM fixtures WHERE id = ?`), id)

	var f model.Fixture
	var kickoff int64
	var hg, ag sql.NullInt64
	err := row.Scan(&f.ID, &f.LeagueID, &f.Season, &f.HomeTeamID, &f.AwayTeamID,
		&f.HomeTeam, &f.AwayTeam, &kickoff, &f.Status, &f.Venue, &hg, &ag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fixture %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan fixture: %w", err)
	}
	f.Kickoff = fromMillis(kickoff)
	f.HomeGoals = intFromNull(hg)
	f.AwayGoals = intFromNull(ag)
	return &f, nil
}

func (s *SQLStore) GetStandings(ctx context.Context, leagueID int64, season int) ([]model.Standing, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT league_id, season, team_id, team_name, rank, points,
		played, win, draw, lose, goals_for, goals_against, form
		FROM standings WHERE league_id = ? AND season = ? ORDER BY rank, team_id`), leagueID, season)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	out := make([]model.Standing, 0)
	for rows.Next() {
		var r model.Standing
		if err := rows.Scan(&r.LeagueID, &r.Season, &r.TeamID, &r.TeamName, &r.Rank, &r.Points,
			&r.Played, &r.Win, &r.Draw, &r.Lose, &r.GoalsFor, &r.GoalsAgainst, &r.Form); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetPredictions(ctx context.Context, ids []int64) ([]model.EnhancedPrediction, error) {
	if len(ids) == 0 {
		return []model.EnhancedPrediction{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT fixture_id, payload FROM predictions WHERE fixture_id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]model.EnhancedPrediction, len(ids))
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		var p model.EnhancedPrediction
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode prediction %d: %w", id, err)
		}
		found[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.EnhancedPrediction, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
			delete(found, id)
		}
	}
	return out, nil
}

const insertEvent = `INSERT INTO ingestion_events
	(id, source, scope, status, started_ms, finished_ms, duration_ms, records_written, fallback_used, checksum, metadata, error, retry_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLStore) InsertIngestionEvent(ctx context.Context, e model.IngestionEvent) error {
	if e.ID == "" {
		return fmt.Errorf("%w: ingestion event without id", ErrInvalidRecord)
	}
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	var finished sql.NullInt64
	if e.FinishedAt != nil {
		finished = sql.NullInt64{Int64: millis(*e.FinishedAt), Valid: true}
	}
	return s.exec(ctx, insertEvent, e.ID, e.Source, e.Scope, string(e.Status), millis(e.StartedAt),
		finished, nullInt64(e.DurationMs), nullInt(e.RecordsWritten), e.FallbackUsed,
		e.Checksum, meta, e.Error, e.RetryCount)
}

const finishEvent = `UPDATE ingestion_events SET
	status = ?, finished_ms = ?, duration_ms = ?, records_written = ?, fallback_used = ?,
	checksum = ?, metadata = ?, error = ?, retry_count = ?
	WHERE id = ? AND status IN ('pending', 'running')`

const eventStatus = `SELECT status FROM ingestion_events WHERE id = ?`

// FinishIngestionEvent records the terminal state of an open event. A
// finished event is never rewritten.
func (s *SQLStore) FinishIngestionEvent(ctx context.Context, e model.IngestionEvent) error {
	if !e.Status.Terminal() {
		return fmt.Errorf("%w: finish with non-terminal status %q", ErrInvalidRecord, e.Status)
	}
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	var finished sql.NullInt64
	if e.FinishedAt != nil {
		finished = sql.NullInt64{Int64: millis(*e.FinishedAt), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.rebind(finishEvent), string(e.Status), finished,
		nullInt64(e.DurationMs), nullInt(e.RecordsWritten), e.FallbackUsed,
		e.Checksum, meta, e.Error, e.RetryCount, e.ID)
	if err != nil {
		return fmt.Errorf("finish ingestion event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, s.rebind(eventStatus), e.ID).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: ingestion event %s", ErrNotFound, e.ID)
		case err != nil:
			return fmt.Errorf("finish ingestion event: %w", err)
		}
		return fmt.Errorf("%w: %s is %s", ErrEventFinished, e.ID, status)
	}
	return nil
}

func (s *SQLStore) GetRecentIngestionEvents(ctx context.Context, limit int) ([]model.IngestionEvent, error) {
	if limit <= 0 {
		limit = DefaultEventCapacity
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, source, scope, status, started_ms, finished_ms,
		duration_ms, records_written, fallback_used, checksum, metadata, error, retry_count
		FROM ingestion_events ORDER BY started_ms DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion events: %w", err)
	}
	defer rows.Close()

	out := make([]model.IngestionEvent, 0, limit)
	for rows.Next() {
		var (
			e                  model.IngestionEvent
			status, meta       string
			started            int64
			finished, duration sql.NullInt64
			records            sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.Scope, &status, &started, &finished,
			&duration, &records, &e.FallbackUsed, &e.Checksum, &meta, &e.Error, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("scan ingestion event: %w", err)
		}
		e.Status = model.IngestionStatus(status)
		e.StartedAt = fromMillis(started)
		if finished.Valid {
			t := fromMillis(finished.Int64)
			e.FinishedAt = &t
		}
		if duration.Valid {
			d := duration.Int64
			e.DurationMs = &d
		}
		e.RecordsWritten = intFromNull(records)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				s.logger.Warn(ctx, "ignoring unreadable event metadata", logger.String("id", e.ID), logger.Error(err))
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"fixtures", &c.Fixtures},
		{"teams", &c.Teams},
		{"leagues", &c.Leagues},
		{"standings", &c.Standings},
		{"predictions", &c.Predictions},
		{"ingestion_events", &c.IngestionEvents},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
