package service

import (
	"context"

	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/domain/model"
)

const (
	formWindow = 5
	// homeVenueEdge is the venue signal when nothing better is known.
	homeVenueEdge = 0.1

	completenessFixtureOnly = 20.0
	completenessStandings   = 60.0
)

// standingsFeatures derives a feature bundle from stored fixtures and
// league tables. It serves deployments without a model service.
type standingsFeatures struct {
	store repository.Store
}

func newStandingsFeatures(store repository.Store) *standingsFeatures {
	return &standingsFeatures{store: store}
}

func (f *standingsFeatures) Features(ctx context.Context, fixtureID int64) (*model.MatchFeatures, error) {
	fx, err := f.store.GetFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	out := &model.MatchFeatures{
		FixtureID:      fx.ID,
		HomeTeamID:     fx.HomeTeamID,
		AwayTeamID:     fx.AwayTeamID,
		HomeForm:       model.TeamForm{Trend: model.TrendStable},
		AwayForm:       model.TeamForm{Trend: model.TrendStable},
		VenueAdvantage: homeVenueEdge,
		Quality: model.DataQuality{
			Completeness: completenessFixtureOnly,
			Sources:      []string{"fixture"},
		},
	}

	table, err := f.store.GetStandings(ctx, fx.LeagueID, fx.Season)
	if err != nil {
		return nil, err
	}
	home, away := rowOf(table, fx.HomeTeamID), rowOf(table, fx.AwayTeamID)
	if home == nil || away == nil {
		return out, nil
	}

	out.HomeForm = formOf(home.Form)
	out.AwayForm = formOf(away.Form)
	out.HomeXG = (perGame(home.GoalsFor, home.Played) + perGame(away.GoalsAgainst, away.Played)) / 2
	out.AwayXG = (perGame(away.GoalsFor, away.Played) + perGame(home.GoalsAgainst, home.Played)) / 2
	out.Quality.Completeness = completenessStandings
	out.Quality.Sources = append(out.Quality.Sources, "standings")
	return out, nil
}

func rowOf(table []model.Standing, teamID int64) *model.Standing {
	for i := range table {
		if table[i].TeamID == teamID {
			return &table[i]
		}
	}
	return nil
}

func perGame(goals, played int) float64 {
	if played <= 0 {
		return 0
	}
	return float64(goals) / float64(played)
}

// formOf scores the last five results of a form string such as "WWDLW",
// newest result last. The trend compares the two newest results with the
// two oldest ones in the window.
func formOf(form string) model.TeamForm {
	if len(form) > formWindow {
		form = form[len(form)-formWindow:]
	}
	pts := make([]int, len(form))
	total := 0
	for i := 0; i < len(form); i++ {
		switch form[i] {
		case 'W', 'w':
			pts[i] = 3
		case 'D', 'd':
			pts[i] = 1
		}
		total += pts[i]
	}

	trend := model.TrendStable
	if n := len(pts); n >= 4 {
		oldest, newest := pts[0]+pts[1], pts[n-2]+pts[n-1]
		switch {
		case newest > oldest:
			trend = model.TrendImproving
		case newest < oldest:
			trend = model.TrendDeclining
		}
	}
	return model.TeamForm{Points: total, Trend: trend}
}
