package upstream

import (
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
)

// Payload shapes of the football data API, as far as ingestion needs them.

type apiRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type apiFixtureItem struct {
	Fixture struct {
		ID     int64     `json:"id"`
		Date   time.Time `json:"date"`
		Venue  apiRef    `json:"venue"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Season int    `json:"season"`
	} `json:"league"`
	Teams struct {
		Home apiRef `json:"home"`
		Away apiRef `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

type apiTeamItem struct {
	Team struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Code    string `json:"code"`
		Country string `json:"country"`
		Founded int    `json:"founded"`
	} `json:"team"`
	Venue apiRef `json:"venue"`
}

type apiLeagueItem struct {
	League struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"league"`
	Country struct {
		Name string `json:"name"`
		Code string `json:"code"`
	} `json:"country"`
	Seasons []apiSeason `json:"seasons"`
}

type apiSeason struct {
	Year    int  `json:"year"`
	Current bool `json:"current"`
}

type apiStandingRow struct {
	Rank   int    `json:"rank"`
	Team   apiRef `json:"team"`
	Points int    `json:"points"`
	Form   string `json:"form"`
	All    struct {
		Played int `json:"played"`
		Win    int `json:"win"`
		Draw   int `json:"draw"`
		Lose   int `json:"lose"`
		Goals  struct {
			For     int `json:"for"`
			Against int `json:"against"`
		} `json:"goals"`
	} `json:"all"`
}

type apiStandingsItem struct {
	League struct {
		ID        int64              `json:"id"`
		Name      string             `json:"name"`
		Season    int                `json:"season"`
		Standings [][]apiStandingRow `json:"standings"`
	} `json:"league"`
}

// DecodeFixtures maps a fixtures envelope onto domain fixtures.
func DecodeFixtures(env Envelope) ([]model.Fixture, error) {
	var items []apiFixtureItem
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	out := make([]model.Fixture, 0, len(items))
	for _, it := range items {
		if it.Fixture.ID == 0 {
			continue
		}
		out = append(out, model.Fixture{
			ID:         it.Fixture.ID,
			LeagueID:   it.League.ID,
			Season:     it.League.Season,
			HomeTeamID: it.Teams.Home.ID,
			AwayTeamID: it.Teams.Away.ID,
			HomeTeam:   it.Teams.Home.Name,
			AwayTeam:   it.Teams.Away.Name,
			Kickoff:    it.Fixture.Date,
			Status:     it.Fixture.Status.Short,
			Venue:      it.Fixture.Venue.Name,
			HomeGoals:  it.Goals.Home,
			AwayGoals:  it.Goals.Away,
		})
	}
	return out, nil
}

// DecodeTeams maps a teams envelope onto domain teams.
func DecodeTeams(env Envelope) ([]model.Team, error) {
	var items []apiTeamItem
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	out := make([]model.Team, 0, len(items))
	for _, it := range items {
		if it.Team.ID == 0 {
			continue
		}
		out = append(out, model.Team{
			ID:      it.Team.ID,
			Name:    it.Team.Name,
			Code:    it.Team.Code,
			Country: it.Team.Country,
			Founded: it.Team.Founded,
			Venue:   it.Venue.Name,
		})
	}
	return out, nil
}

// DecodeLeagues maps a leagues envelope onto domain leagues, one per
// (league, season) pair. When season > 0 only that season is kept.
func DecodeLeagues(env Envelope, season int) ([]model.League, error) {
	var items []apiLeagueItem
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	var out []model.League
	for _, it := range items {
		if it.League.ID == 0 {
			continue
		}
		for _, s := range it.Seasons {
			if season > 0 && s.Year != season {
				continue
			}
			out = append(out, model.League{
				ID:      it.League.ID,
				Name:    it.League.Name,
				Country: it.Country.Name,
				Type:    it.League.Type,
				Season:  s.Year,
			})
		}
	}
	return out, nil
}

// DecodeStandings flattens every group of a standings envelope.
func DecodeStandings(env Envelope) ([]model.Standing, error) {
	var items []apiStandingsItem
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	var out []model.Standing
	for _, it := range items {
		for _, group := range it.League.Standings {
			for _, row := range group {
				out = append(out, model.Standing{
					LeagueID:     it.League.ID,
					Season:       it.League.Season,
					TeamID:       row.Team.ID,
					TeamName:     row.Team.Name,
					Rank:         row.Rank,
					Points:       row.Points,
					Played:       row.All.Played,
					Win:          row.All.Win,
					Draw:         row.All.Draw,
					Lose:         row.All.Lose,
					GoalsFor:     row.All.Goals.For,
					GoalsAgainst: row.All.Goals.Against,
					Form:         row.Form,
				})
			}
		}
	}
	return out, nil
}
