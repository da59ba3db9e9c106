package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/turnout/internal/adapters/mq/worker"
	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	logging "github.com/okian/turnout/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func sub(event, batch string) model.Submission {
	return model.Draft{EventID: event, BatchID: batch, VoterName: "Kim", VoterPhone: "010"}.Submit(time.Now())
}

// tally does an unsynchronised read-modify-write per event. It only stays
// correct if one goroutine owns each event.
type tally struct {
	counts map[string]int
	guard  sync.Mutex
}

func (t *tally) Handle(_ context.Context, s model.Submission) error {
	t.guard.Lock()
	n := t.counts[s.EventID]
	t.guard.Unlock()

	time.Sleep(time.Microsecond)

	t.guard.Lock()
	t.counts[s.EventID] = n + 1
	t.guard.Unlock()
	return nil
}

func TestPoolSerialisesPerEvent(t *testing.T) {
	convey.Convey("Given a pool with four shards", t, func() {
		_ = logging.Init()
		h := &tally{counts: map[string]int{}}
		pool := worker.NewPool(h, worker.WithShards(4), worker.WithQueueSize(512))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many goroutines submit to a handful of events", func() {
			const perEvent = 50
			events := []string{"G1", "G2", "G3"}
			var wg sync.WaitGroup
			errs := make(chan error, perEvent*len(events))
			for _, ev := range events {
				for i := 0; i < perEvent; i++ {
					wg.Add(1)
					go func(ev string, i int) {
						defer wg.Done()
						errs <- pool.Submit(ctx, sub(ev, fmt.Sprintf("b%d", i)))
					}(ev, i)
				}
			}
			wg.Wait()
			close(errs)

			convey.Convey("Then no update is lost", func() {
				for err := range errs {
					convey.So(err, convey.ShouldBeNil)
				}
				for _, ev := range events {
					convey.So(h.counts[ev], convey.ShouldEqual, perEvent)
				}
			})
		})

		convey.Convey("When routing the same event twice", func() {
			convey.Convey("Then it lands on the same shard", func() {
				convey.So(pool.ShardFor("G1"), convey.ShouldEqual, pool.ShardFor("G1"))
				convey.So(pool.ShardFor("G1"), convey.ShouldBeBetweenOrEqual, 0, pool.Shards()-1)
			})
		})

		convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
	})
}

func TestPoolReportsHandlerErrors(t *testing.T) {
	convey.Convey("Given a handler that rejects one event", t, func() {
		_ = logging.Init()
		boom := errors.New("boom")
		pool := worker.NewPool(worker.HandlerFunc(func(_ context.Context, s model.Submission) error {
			if s.EventID == "bad" {
				return boom
			}
			return nil
		}), worker.WithShards(2))
		pool.Start(context.Background())
		defer func() { _ = pool.Shutdown(context.Background()) }()

		convey.Convey("Then the submitter sees the handler's result", func() {
			convey.So(pool.Submit(context.Background(), sub("good", "b1")), convey.ShouldBeNil)
			convey.So(errors.Is(pool.Submit(context.Background(), sub("bad", "b1")), boom), convey.ShouldBeTrue)
		})
	})
}

func TestPoolBackpressure(t *testing.T) {
	convey.Convey("Given a single shard with room for one pending job", t, func() {
		_ = logging.Init()
		entered := make(chan struct{}, 1)
		release := make(chan struct{})
		pool := worker.NewPool(worker.HandlerFunc(func(context.Context, model.Submission) error {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return nil
		}), worker.WithShards(1), worker.WithQueueSize(1))
		ctx := context.Background()
		pool.Start(ctx)

		results := make(chan error, 2)
		go func() { results <- pool.Submit(ctx, sub("G1", "b1")) }()
		<-entered
		go func() { results <- pool.Submit(ctx, sub("G1", "b2")) }()
		for pool.Pending(ctx) == 0 {
			time.Sleep(time.Millisecond)
		}

		convey.Convey("When a third submission arrives", func() {
			err := pool.Submit(ctx, sub("G1", "b3"))
			close(release)

			convey.Convey("Then it is refused with backpressure and the others complete", func() {
				convey.So(errors.Is(err, domain.ErrBackpressure), convey.ShouldBeTrue)
				convey.So(<-results, convey.ShouldBeNil)
				convey.So(<-results, convey.ShouldBeNil)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPoolShutdown(t *testing.T) {
	convey.Convey("Given a started pool", t, func() {
		_ = logging.Init()
		h := &tally{counts: map[string]int{}}
		pool := worker.NewPool(h, worker.WithShards(2))
		pool.Start(context.Background())

		convey.Convey("When it is shut down", func() {
			convey.So(pool.Submit(context.Background(), sub("G1", "b1")), convey.ShouldBeNil)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly and refuses new work", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(errors.Is(pool.Submit(context.Background(), sub("G1", "b2")), worker.ErrStopped), convey.ShouldBeTrue)
				convey.So(h.counts["G1"], convey.ShouldEqual, 1)
			})
		})
	})
}

func TestPoolCancelledSubmitter(t *testing.T) {
	convey.Convey("Given a submitter whose context is already cancelled", t, func() {
		_ = logging.Init()
		called := false
		pool := worker.NewPool(worker.HandlerFunc(func(context.Context, model.Submission) error {
			called = true
			return nil
		}), worker.WithShards(1))
		pool.Start(context.Background())
		defer func() { _ = pool.Shutdown(context.Background()) }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		convey.Convey("Then the job is not applied", func() {
			err := pool.Submit(ctx, sub("G1", "b1"))
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
			convey.So(errors.Is(err, domain.ErrStoreUnavailable), convey.ShouldBeTrue)
			convey.So(called, convey.ShouldBeFalse)
		})
	})
}

func TestPoolOutlivesStartContext(t *testing.T) {
	convey.Convey("Given a pool whose start context is cancelled", t, func() {
		_ = logging.Init()
		h := &tally{counts: map[string]int{}}
		pool := worker.NewPool(h, worker.WithShards(2))
		ctx, cancel := context.WithCancel(context.Background())
		pool.Start(ctx)
		cancel()
		convey.Reset(func() { _ = pool.Shutdown(context.Background()) })

		convey.Convey("When a submission arrives before Shutdown", func() {
			submitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			err := pool.Submit(submitCtx, sub("G1", "b1"))

			convey.Convey("Then it is still applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(h.counts["G1"], convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When submitting after Shutdown", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			err := pool.Submit(context.Background(), sub("G1", "b2"))

			convey.Convey("Then the refusal is retryable", func() {
				convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
				convey.So(errors.Is(err, domain.ErrStoreUnavailable), convey.ShouldBeTrue)
				convey.So(domain.Retryable(err), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given worker options", t, func() {
		convey.Convey("When passing invalid shard and queue sizes", func() {
			pool := worker.NewPool(&tally{counts: map[string]int{}}, worker.WithShards(0), worker.WithQueueSize(-1), worker.WithPoolLogger(nil))

			convey.Convey("Then defaults are kept", func() {
				convey.So(pool.Shards(), convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
