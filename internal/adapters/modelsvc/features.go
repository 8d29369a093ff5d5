package modelsvc

import (
	"context"
	"fmt"

	"github.com/okian/fixturecast/internal/domain/model"
)

// FixtureLookup resolves a fixture's participants.
type FixtureLookup interface {
	GetFixture(ctx context.Context, id int64) (*model.Fixture, error)
}

// FeatureProvider resolves a fixture's teams from storage and asks the model
// service for the derived feature bundle.
type FeatureProvider struct {
	client   *Client
	fixtures FixtureLookup
}

// NewFeatureProvider wires a provider over the model client and fixture storage.
func NewFeatureProvider(client *Client, fixtures FixtureLookup) *FeatureProvider {
	return &FeatureProvider{client: client, fixtures: fixtures}
}

// Features returns the feature bundle for fixtureID.
func (p *FeatureProvider) Features(ctx context.Context, fixtureID int64) (*model.MatchFeatures, error) {
	fx, err := p.fixtures.GetFixture(ctx, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("%w: %d: %w", ErrUnknownFixture, fixtureID, err)
	}
	if fx == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFixture, fixtureID)
	}
	if !fx.HasTeams() {
		return nil, fmt.Errorf("%w: fixture %d", ErrUnresolvedTeams, fixtureID)
	}
	return p.client.Features(ctx, fixtureID, fx.HomeTeamID, fx.AwayTeamID)
}
