package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/fixturecast/internal/app"
	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/adapters/upstream"
	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/internal/domain/prediction"
	"github.com/okian/fixturecast/pkg/fault"
	"github.com/okian/fixturecast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const fixturesJSON = `[
  {"fixture":{"id":101,"date":"2025-04-05T15:00:00Z","venue":{"id":1,"name":"Anfield"},"status":{"short":"NS"}},
   "league":{"id":39,"name":"Premier League","season":2024},
   "teams":{"home":{"id":40,"name":"Liverpool"},"away":{"id":45,"name":"Everton"}},
   "goals":{"home":null,"away":null}},
  {"fixture":{"id":102,"date":"2025-04-05T17:30:00Z","venue":{"id":2,"name":"Emirates"},"status":{"short":"NS"}},
   "league":{"id":39,"name":"Premier League","season":2024},
   "teams":{"home":{"id":42,"name":"Arsenal"},"away":{"id":49,"name":"Chelsea"}},
   "goals":{"home":null,"away":null}}
]`

const standingsJSON = `[{"league":{"id":39,"name":"Premier League","season":2024,"standings":[[
  {"rank":1,"team":{"id":40,"name":"Liverpool"},"points":60,"form":"WWWDW",
   "all":{"played":25,"win":19,"draw":3,"lose":3,"goals":{"for":60,"against":20}}},
  {"rank":15,"team":{"id":45,"name":"Everton"},"points":25,"form":"LLDLL",
   "all":{"played":25,"win":6,"draw":7,"lose":12,"goals":{"for":22,"against":40}}}
]]}}]`

const (
	fixturesEndpoint  = "fixtures?date=2025-04-05"
	standingsEndpoint = "standings?league=39&season=2024"
)

// fakeUpstream serves canned responses per endpoint.
type fakeUpstream struct {
	mu        sync.Mutex
	responses map[string]*upstream.Response
	errs      map[string]error
	calls     []string
	healthErr error
	started   bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: make(map[string]*upstream.Response),
		errs:      make(map[string]error),
	}
}

func (f *fakeUpstream) serve(endpoint, payload string, source upstream.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[endpoint] = &upstream.Response{
		Envelope: upstream.Envelope{Response: json.RawMessage(payload)},
		Source:   source,
	}
}

func (f *fakeUpstream) Fetch(_ context.Context, endpoint string) (*upstream.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	if err := f.errs[endpoint]; err != nil {
		return nil, err
	}
	if r, ok := f.responses[endpoint]; ok {
		cp := *r
		return &cp, nil
	}
	return &upstream.Response{
		Envelope: upstream.Envelope{Response: json.RawMessage("[]")},
		Source:   upstream.SourceEmpty,
		Err:      fault.New(fault.Transient, "fetch "+endpoint, errors.New("unreachable")),
	}, nil
}

func (f *fakeUpstream) Health(context.Context) error { return f.healthErr }
func (f *fakeUpstream) Stats() upstream.Stats      { return upstream.Stats{} }
func (f *fakeUpstream) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}
func (f *fakeUpstream) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func newService(up *fakeUpstream, opts ...service.Option) *service.Service {
	svc, err := service.New(up, opts...)
	if err != nil {
		panic(err)
	}
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given no upstream client", t, func() {
		svc, err := service.New(nil)

		Convey("Then construction fails", func() {
			So(svc, ShouldBeNil)
			So(errors.Is(err, service.ErrNoUpstream), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := newService(newFakeUpstream(),
			service.WithWorkerCount(2),
			service.WithQueueSize(8),
			service.WithStore(repository.NewMemoryStore()),
			service.WithSummaryLimit(10),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueSize"], ShouldEqual, 8)
			So(stats["started"], ShouldEqual, false)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		up := newFakeUpstream()
		svc := newService(up, service.WithWorkerCount(1))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When enqueueing before start", func() {
			err := svc.Enqueue(ctx, model.SyncJob{Kind: model.SyncLive})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			started := svc.GetStats()
			svc.Stop()
			stopped := svc.GetStats()

			Convey("Then the state follows", func() {
				So(started["started"], ShouldEqual, true)
				So(started["queueLength"], ShouldEqual, 0)
				So(stopped["started"], ShouldEqual, false)
				So(up.started, ShouldBeFalse)
			})
		})
	})
}

func TestService_Sync(t *testing.T) {
	Convey("Given a service over a fake upstream", t, func() {
		up := newFakeUpstream()
		store := repository.NewMemoryStore()
		svc := newService(up, service.WithStore(store))
		ctx := context.Background()

		Convey("When fixtures come from the network", func() {
			up.serve(fixturesEndpoint, fixturesJSON, upstream.SourceNetwork)
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncFixtures, Date: "2025-04-05"})

			Convey("Then the event completes with every record written", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompleted)
				So(*e.RecordsWritten, ShouldEqual, 2)
				So(e.Checksum, ShouldNotBeEmpty)
				So(e.FallbackUsed, ShouldBeFalse)
				So(e.Scope, ShouldEqual, "fixtures?date=2025-04-05")

				f, err := store.GetFixture(ctx, 101)
				So(err, ShouldBeNil)
				So(f.HomeTeam, ShouldEqual, "Liverpool")
			})

			Convey("Then a second identical sync shares the checksum", func() {
				again, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncFixtures, Date: "2025-04-05"})
				So(err, ShouldBeNil)
				So(again.Checksum, ShouldEqual, e.Checksum)
			})
		})

		Convey("When the data is a stale cache copy", func() {
			up.serve(standingsEndpoint, standingsJSON, upstream.SourceStale)
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncStandings, League: 39, Season: 2024})

			Convey("Then it is written but the event is degraded", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusDegraded)
				So(e.FallbackUsed, ShouldBeTrue)
				So(*e.RecordsWritten, ShouldEqual, 2)
				table, _ := store.GetStandings(ctx, 39, 2024)
				So(table, ShouldHaveLength, 2)
			})
		})

		Convey("When the data is synthetic", func() {
			up.serve(fixturesEndpoint, fixturesJSON, upstream.SourceSynthetic)
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncFixtures, Date: "2025-04-05"})

			Convey("Then nothing is written and the event is degraded", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusDegraded)
				So(*e.RecordsWritten, ShouldEqual, 0)
				So(e.Metadata["write_skipped"], ShouldEqual, true)
				_, err := store.GetFixture(ctx, 101)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the upstream has nothing but an error", func() {
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncLive})

			Convey("Then the empty fallback degrades the event", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusDegraded)
				So(e.Metadata["upstream_error"], ShouldNotBeEmpty)
				So(up.calls, ShouldContain, "fixtures?live=all")
			})
		})

		Convey("When the fetch itself fails", func() {
			up.errs["leagues?season=2024"] = upstream.ErrInvalidEndpoint
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncLeagues, Season: 2024})

			Convey("Then the event fails and the error is returned", func() {
				So(errors.Is(err, upstream.ErrInvalidEndpoint), ShouldBeTrue)
				So(e.Status, ShouldEqual, model.StatusFailed)
				So(e.Error, ShouldNotBeEmpty)
			})
		})

		Convey("When the job is invalid", func() {
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncTeams})

			Convey("Then no event is recorded", func() {
				So(e, ShouldBeNil)
				So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
				summary, _ := svc.IngestionSummary(ctx, 0)
				So(summary.Totals.TotalEvents, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given synced fixtures and standings", t, func() {
		up := newFakeUpstream()
		up.serve(fixturesEndpoint, fixturesJSON, upstream.SourceNetwork)
		up.serve(standingsEndpoint, standingsJSON, upstream.SourceNetwork)
		store := repository.NewMemoryStore()
		svc := newService(up, service.WithStore(store), service.WithMaxFactors(3))
		ctx := context.Background()

		_, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncFixtures, Date: "2025-04-05"})
		So(err, ShouldBeNil)
		_, err = svc.Sync(ctx, model.SyncJob{Kind: model.SyncStandings, League: 39, Season: 2024})
		So(err, ShouldBeNil)

		Convey("When predicting the table leader at home", func() {
			p, err := svc.Predict(ctx, 101)

			Convey("Then the rules favour the home side", func() {
				So(err, ShouldBeNil)
				So(p.Insights.Source, ShouldEqual, model.SourceRules)
				So(p.Probabilities.Home, ShouldBeGreaterThan, p.Probabilities.Draw)
				So(p.Probabilities.Home, ShouldBeGreaterThan, p.Probabilities.Away)
				So(p.Probabilities.Sum(), ShouldAlmostEqual, 100, 0.1)
				So(len(p.TopFactors), ShouldBeLessThanOrEqualTo, 3)
				So(p.Insights.DataQuality.Sources, ShouldContain, "standings")
			})

			Convey("Then the prediction is stored", func() {
				stored, err := store.GetPredictions(ctx, []int64{101})
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 1)
			})
		})

		Convey("When predicting an unknown fixture", func() {
			p, err := svc.Predict(ctx, 999)

			Convey("Then a not-found feature error is returned", func() {
				So(p, ShouldBeNil)
				So(errors.Is(err, prediction.ErrFeatures), ShouldBeTrue)
				So(service.IsNotFound(err), ShouldBeTrue)
			})
		})

		Convey("When predicting a batch with an unknown fixture", func() {
			res := svc.PredictBatch(ctx, []int64{101, 102, 999, 101})

			Convey("Then failures stay per fixture", func() {
				So(res.Predictions, ShouldHaveLength, 2)
				So(res.Errors, ShouldContainKey, int64(999))
				// no standings row for 102's teams: fixture-only bundle
				So(res.Predictions[102].Insights.DataQuality.Completeness, ShouldEqual, 20)
			})
		})

		Convey("When a predictions job runs", func() {
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncPredictions, FixtureIDs: []int64{101, 102}})

			Convey("Then it completes without a model configured", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompleted)
				So(*e.RecordsWritten, ShouldEqual, 2)
				So(e.Checksum, ShouldNotBeEmpty)
			})
		})

		Convey("When a predictions job hits an unknown fixture", func() {
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncPredictions, FixtureIDs: []int64{101, 999}})

			Convey("Then it is degraded", func() {
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusDegraded)
				So(*e.RecordsWritten, ShouldEqual, 1)
			})
		})

		Convey("When no fixture of a predictions job is known", func() {
			e, err := svc.Sync(ctx, model.SyncJob{Kind: model.SyncPredictions, FixtureIDs: []int64{998, 999}})

			Convey("Then it fails", func() {
				So(errors.Is(err, service.ErrNothingSynced), ShouldBeTrue)
				So(e.Status, ShouldEqual, model.StatusFailed)
			})
		})
	})
}

func TestService_Queue(t *testing.T) {
	Convey("Given a started service", t, func() {
		up := newFakeUpstream()
		up.serve(standingsEndpoint, standingsJSON, upstream.SourceNetwork)
		svc := newService(up, service.WithWorkerCount(2), service.WithJobTimeout(5*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a job is enqueued", func() {
			So(svc.Enqueue(ctx, model.SyncJob{Kind: model.SyncStandings, League: 39, Season: 2024}), ShouldBeNil)

			Convey("Then a worker runs it", func() {
				total, last := 0, 0
				deadline := time.Now().Add(3 * time.Second)
				for time.Now().Before(deadline) {
					s, err := svc.IngestionSummary(ctx, 10)
					So(err, ShouldBeNil)
					last = s.Totals.ByStatus[string(model.StatusCompleted)]
					if last == 1 {
						total = s.Totals.TotalEvents
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(last, ShouldEqual, 1)
				So(total, ShouldEqual, 1)
			})
		})

		Convey("When an invalid job is enqueued", func() {
			err := svc.Enqueue(ctx, model.SyncJob{Kind: "odds"})

			Convey("Then it is rejected up front", func() {
				So(errors.Is(err, model.ErrInvalidJob), ShouldBeTrue)
			})
		})
	})
}

func TestService_Health(t *testing.T) {
	Convey("Given an unhealthy upstream", t, func() {
		up := newFakeUpstream()
		up.healthErr = upstream.ErrUnhealthy
		svc := newService(up)

		Convey("Then the report says so", func() {
			h := svc.Health(context.Background())
			So(h["upstream"], ShouldEqual, "unavailable")
			So(h, ShouldNotContainKey, "model")
		})
	})
}
