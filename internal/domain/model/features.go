package model

// Trend describes the direction of recent form.
type Trend string

// Form trends.
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// TeamForm summarises the last five matches.
type TeamForm struct {
	Points int   `json:"points"` // 0..15
	Trend  Trend `json:"trend"`
}

// HeadToHead counts previous meetings from the home side's perspective.
type HeadToHead struct {
	HomeWins int `json:"homeWins"`
	Draws    int `json:"draws"`
	AwayWins int `json:"awayWins"`
}

// Total is the number of meetings.
func (h HeadToHead) Total() int { return h.HomeWins + h.Draws + h.AwayWins }

// MarketDrift is the movement of the home price in the betting market.
// Positive velocity means money is moving towards the home side.
type MarketDrift struct {
	Velocity float64 `json:"velocity"`
}

// DataQuality describes how much of the feature bundle is backed by data.
type DataQuality struct {
	Completeness float64  `json:"completeness"` // 0..100
	RecencyHours float64  `json:"recencyHours"`
	Sources      []string `json:"sources"`
}

// MatchFeatures is the feature bundle for one fixture.
type MatchFeatures struct {
	FixtureID      int64        `json:"fixtureId"`
	HomeTeamID     int64        `json:"homeTeamId"`
	AwayTeamID     int64        `json:"awayTeamId"`
	HomeForm       TeamForm     `json:"homeForm"`
	AwayForm       TeamForm     `json:"awayForm"`
	HomeXG         float64      `json:"homeXg"`
	AwayXG         float64      `json:"awayXg"`
	HeadToHead     HeadToHead   `json:"headToHead"`
	HomeInjury     float64      `json:"homeInjuryImpact"` // 0..1, share of strength missing
	AwayInjury     float64      `json:"awayInjuryImpact"`
	VenueAdvantage float64      `json:"venueAdvantage"` // -1..1
	Market         *MarketDrift `json:"market,omitempty"`
	Weather        *float64     `json:"weatherModifier,omitempty"` // -1..1, negative suppresses scoring
	Quality        DataQuality  `json:"dataQuality"`
}

// HasTeams reports whether both team ids are resolved.
func (f MatchFeatures) HasTeams() bool {
	return f.HomeTeamID > 0 && f.AwayTeamID > 0
}
