package upstream

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var referenceYAML []byte

// syntheticFixtureBase keeps synthesized fixture ids far away from real ones.
const syntheticFixtureBase = 900_000_000

type refCountry struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
}

type refLeague struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
	Type    string `yaml:"type"`
}

type refTeam struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Code    string `yaml:"code"`
	Country string `yaml:"country"`
	Founded int    `yaml:"founded"`
	Venue   string `yaml:"venue"`
	League  int64  `yaml:"league"`
}

type referenceData struct {
	Countries []refCountry `yaml:"countries"`
	Leagues   []refLeague  `yaml:"leagues"`
	Teams     []refTeam    `yaml:"teams"`
}

func loadReference(data []byte) (*referenceData, error) {
	var ref referenceData
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	return &ref, nil
}

func (r *referenceData) league(id int64) (refLeague, bool) {
	for _, l := range r.Leagues {
		if l.ID == id {
			return l, true
		}
	}
	return refLeague{}, false
}

func (r *referenceData) teamsOf(league int64) []refTeam {
	if league == 0 {
		return r.Teams
	}
	var out []refTeam
	for _, t := range r.Teams {
		if t.League == league {
			out = append(out, t)
		}
	}
	return out
}

// synthesize builds a plausible envelope for key from the reference data.
// The result is deterministic for a given key and day.
func (r *referenceData) synthesize(key CacheKey, now time.Time) Envelope {
	q := key.Values()
	league, _ := strconv.ParseInt(q.Get("league"), 10, 64)
	season, _ := strconv.Atoi(q.Get("season"))
	if season == 0 {
		season = now.Year()
	}

	var items []any
	switch key.Path {
	case "countries":
		for _, c := range r.Countries {
			items = append(items, c)
		}
	case "leagues":
		for _, l := range r.Leagues {
			if league != 0 && l.ID != league {
				continue
			}
			it := apiLeagueItem{}
			it.League.ID, it.League.Name, it.League.Type = l.ID, l.Name, l.Type
			it.Country.Name = l.Country
			it.Country.Code = r.countryCode(l.Country)
			it.Seasons = []apiSeason{{Year: season, Current: true}}
			items = append(items, it)
		}
	case "teams":
		for _, t := range r.teamsOf(league) {
			it := apiTeamItem{}
			it.Team.ID, it.Team.Name, it.Team.Code = t.ID, t.Name, t.Code
			it.Team.Country, it.Team.Founded = t.Country, t.Founded
			it.Venue = apiRef{Name: t.Venue}
			items = append(items, it)
		}
	case "venues":
		for i, t := range r.teamsOf(league) {
			items = append(items, apiRef{ID: int64(i + 1), Name: t.Venue})
		}
	case "fixtures":
		items = r.fixtures(key, league, season, q.Get("date"), now)
	case "standings":
		if it, ok := r.standings(key, league, season); ok {
			items = append(items, it)
		}
	}

	env := emptyEnvelope(key)
	if len(items) > 0 {
		b, err := json.Marshal(items)
		if err == nil {
			env.Response = b
			env.Results = len(items)
		}
	}
	return env
}

func (r *referenceData) countryCode(name string) string {
	for _, c := range r.Countries {
		if c.Name == name {
			return c.Code
		}
	}
	return ""
}

func seed(key CacheKey) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return h.Sum32()
}

func (r *referenceData) fixtures(key CacheKey, league int64, season int, date string, now time.Time) []any {
	teams := r.teamsOf(league)
	if len(teams) < 2 {
		return nil
	}
	day := now.UTC().Truncate(24 * time.Hour)
	if d, err := time.Parse("2006-01-02", date); err == nil {
		day = d
	}
	kickoff := day.Add(15 * time.Hour)

	s := int(seed(key) % uint32(len(teams)))
	var items []any
	for i := 0; i+1 < len(teams) && len(items) < 5; i += 2 {
		home := teams[(s+i)%len(teams)]
		away := teams[(s+i+1)%len(teams)]
		it := apiFixtureItem{}
		it.Fixture.ID = syntheticFixtureBase + int64(seed(key)%100_000)*10 + int64(len(items))
		it.Fixture.Date = kickoff
		it.Fixture.Venue = apiRef{Name: home.Venue}
		it.Fixture.Status.Short = "NS"
		it.League.ID = home.League
		if l, ok := r.league(home.League); ok {
			it.League.Name = l.Name
		}
		it.League.Season = season
		it.Teams.Home = apiRef{ID: home.ID, Name: home.Name}
		it.Teams.Away = apiRef{ID: away.ID, Name: away.Name}
		items = append(items, it)
	}
	return items
}

func (r *referenceData) standings(key CacheKey, league int64, season int) (apiStandingsItem, bool) {
	l, ok := r.league(league)
	if !ok {
		return apiStandingsItem{}, false
	}
	teams := r.teamsOf(league)
	it := apiStandingsItem{}
	it.League.ID, it.League.Name, it.League.Season = l.ID, l.Name, season

	const played = 10
	s := int(seed(key) % uint32(len(teams)))
	rows := make([]apiStandingRow, 0, len(teams))
	for i := range teams {
		t := teams[(s+i)%len(teams)]
		win := played - 2 - i
		if win < 0 {
			win = 0
		}
		draw := 2
		lose := played - win - draw
		row := apiStandingRow{Rank: i + 1, Team: apiRef{ID: t.ID, Name: t.Name}, Points: win*3 + draw}
		row.All.Played, row.All.Win, row.All.Draw, row.All.Lose = played, win, draw, lose
		row.All.Goals.For = win*2 + draw
		row.All.Goals.Against = lose*2 + draw
		rows = append(rows, row)
	}
	it.League.Standings = [][]apiStandingRow{rows}
	return it, true
}
