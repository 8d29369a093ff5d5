package model

import "time"

// Fixture is one scheduled or played match.
type Fixture struct {
	ID         int64     `json:"id"`
	LeagueID   int64     `json:"leagueId"`
	Season     int       `json:"season"`
	HomeTeamID int64     `json:"homeTeamId"`
	AwayTeamID int64     `json:"awayTeamId"`
	HomeTeam   string    `json:"homeTeam"`
	AwayTeam   string    `json:"awayTeam"`
	Kickoff    time.Time `json:"kickoff"`
	Status     string    `json:"status"`
	Venue      string    `json:"venue,omitempty"`
	HomeGoals  *int      `json:"homeGoals,omitempty"`
	AwayGoals  *int      `json:"awayGoals,omitempty"`
}

// HasTeams reports whether both sides are resolved.
func (f Fixture) HasTeams() bool {
	return f.HomeTeamID > 0 && f.AwayTeamID > 0
}

// Team is a club.
type Team struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	Country string `json:"country,omitempty"`
	Founded int    `json:"founded,omitempty"`
	Venue   string `json:"venue,omitempty"`
}

// League is a competition in one season.
type League struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Type    string `json:"type,omitempty"`
	Season  int    `json:"season"`
}

// Standing is one row of a league table.
type Standing struct {
	LeagueID     int64  `json:"leagueId"`
	Season       int    `json:"season"`
	TeamID       int64  `json:"teamId"`
	TeamName     string `json:"teamName"`
	Rank         int    `json:"rank"`
	Points       int    `json:"points"`
	Played       int    `json:"played"`
	Win          int    `json:"win"`
	Draw         int    `json:"draw"`
	Lose         int    `json:"lose"`
	GoalsFor     int    `json:"goalsFor"`
	GoalsAgainst int    `json:"goalsAgainst"`
	Form         string `json:"form,omitempty"`
}
