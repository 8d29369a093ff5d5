package service

import (
	"testing"

	"github.com/okian/fixturecast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormOf(t *testing.T) {
	Convey("Given form strings", t, func() {
		cases := []struct {
			form   string
			points int
			trend  model.Trend
		}{
			{"WWWWW", 15, model.TrendStable},
			{"LLDWW", 7, model.TrendImproving},
			{"WWDLL", 7, model.TrendDeclining},
			{"LWDWLWW", 10, model.TrendImproving}, // only the last five count
			{"WD", 4, model.TrendStable},
			{"", 0, model.TrendStable},
		}
		for _, c := range cases {
			got := formOf(c.form)
			So(got.Points, ShouldEqual, c.points)
			So(got.Trend, ShouldEqual, c.trend)
		}
	})
}

func TestEndpointFor(t *testing.T) {
	Convey("Given sync jobs", t, func() {
		cases := map[string]model.SyncJob{
			"fixtures?live=all":                {Kind: model.SyncLive},
			"fixtures?date=2025-04-05":         {Kind: model.SyncFixtures, Date: "2025-04-05"},
			"fixtures?league=39&season=2024":   {Kind: model.SyncFixtures, League: 39, Season: 2024},
			"teams?league=39&season=2024":      {Kind: model.SyncTeams, League: 39, Season: 2024},
			"standings?league=140&season=2023": {Kind: model.SyncStandings, League: 140, Season: 2023},
			"leagues?season=2024":              {Kind: model.SyncLeagues, Season: 2024},
		}
		for want, job := range cases {
			got, err := endpointFor(job)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := endpointFor(model.SyncJob{Kind: model.SyncPredictions})
		So(err, ShouldNotBeNil)
	})
}
