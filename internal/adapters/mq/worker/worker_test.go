package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/fixturecast/internal/adapters/mq/queue"
	"github.com/okian/fixturecast/internal/adapters/mq/worker"
	"github.com/okian/fixturecast/internal/domain/model"
	logging "github.com/okian/fixturecast/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

type recordingProcessor struct {
	mu    sync.Mutex
	seen  []model.SyncJob
	fail  map[int64]error
	delay time.Duration
}

func (p *recordingProcessor) Sync(ctx context.Context, job model.SyncJob) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, job)
	return p.fail[job.League]
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func standings(league int64) model.SyncJob {
	return model.SyncJob{Kind: model.SyncStandings, League: league, Season: 2024}
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker on a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		proc := &recordingProcessor{fail: map[int64]error{140: errors.New("upstream down")}}
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("w-test"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive, including a failing one", func() {
			for _, league := range []int64{39, 140, 78} {
				convey.So(q.Enqueue(ctx, standings(league)), convey.ShouldBeNil)
			}

			convey.Convey("Then every job is processed", func() {
				convey.So(waitFor(func() bool { return proc.count() == 3 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a slow job and a job timeout", t, func() {
		q := queue.NewInMemoryQueue()
		proc := &recordingProcessor{delay: time.Second}
		w := worker.NewInMemoryWorker(q, proc, worker.WithJobTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.So(q.Enqueue(ctx, standings(39)), convey.ShouldBeNil)
		_ = q.Close()

		convey.Convey("Then the worker gives up on it and exits once the queue drains", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			time.Sleep(100 * time.Millisecond)
			convey.So(proc.count(), convey.ShouldEqual, 0)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		proc := &recordingProcessor{}
		pool := worker.NewPool(4, q, proc)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many jobs are queued and the pool shuts down", func() {
			for i := int64(1); i <= 50; i++ {
				convey.So(q.Enqueue(ctx, standings(i)), convey.ShouldBeNil)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then queued jobs are drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(proc.count(), convey.ShouldEqual, 50)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), &recordingProcessor{})
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
