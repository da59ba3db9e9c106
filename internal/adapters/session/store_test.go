package session_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/turnout/internal/adapters/session"
	"github.com/okian/turnout/internal/domain"
	"github.com/okian/turnout/internal/domain/model"
	"github.com/okian/turnout/internal/domain/wizard"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sample(id string) *wizard.Session {
	s := wizard.New(id, time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	s.State = wizard.StateCollectingIdentity
	s.Draft = &model.Draft{EventID: "2025-05-01 vs LG", BatchID: "b1"}
	s.Voted["2025-04-30 vs KT"] = true
	return s
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]session.Store{
		"memory": session.NewMemoryStore(),
		"redis":  session.NewRedisStore(client, session.WithKeyPrefix("test:session:")),
	}

	for name, store := range stores {
		Convey("Given a "+name+" store", t, func() {
			Convey("When a session is stored and read back", func() {
				So(store.Put(ctx, sample("s1")), ShouldBeNil)
				got, err := store.Get(ctx, "s1")

				Convey("Then every field survives", func() {
					So(err, ShouldBeNil)
					So(got.State, ShouldEqual, wizard.StateCollectingIdentity)
					So(got.Draft, ShouldNotBeNil)
					So(got.Draft.BatchID, ShouldEqual, "b1")
					So(got.Voted["2025-04-30 vs KT"], ShouldBeTrue)
					n, err := store.Len(ctx)
					So(err, ShouldBeNil)
					So(n, ShouldEqual, 1)
				})

				Convey("And the caller mutates its copy", func() {
					got.Draft.BatchID = "changed"
					again, err := store.Get(ctx, "s1")

					Convey("Then the stored session is unaffected", func() {
						So(err, ShouldBeNil)
						So(again.Draft.BatchID, ShouldEqual, "b1")
					})
				})

				Convey("And it is deleted", func() {
					So(store.Delete(ctx, "s1"), ShouldBeNil)
					_, err := store.Get(ctx, "s1")

					Convey("Then it is gone", func() {
						So(errors.Is(err, domain.ErrSessionNotFound), ShouldBeTrue)
					})
				})

				Reset(func() { _ = store.Delete(ctx, "s1") })
			})

			Convey("When reading an unknown id", func() {
				_, err := store.Get(ctx, "nope")

				Convey("Then SessionNotFound is returned", func() {
					So(errors.Is(err, domain.ErrSessionNotFound), ShouldBeTrue)
				})
			})

			Convey("When storing a session without an id", func() {
				err := store.Put(ctx, &wizard.Session{})

				Convey("Then it is refused", func() {
					So(errors.Is(err, session.ErrMissingID), ShouldBeTrue)
				})
			})
		})
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store with a 30 minute TTL", t, func() {
		c := &clock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
		store := session.NewMemoryStore(session.WithTTL(30*time.Minute), session.WithClock(c.Now), session.WithJanitorInterval(time.Hour))
		defer func() { _ = store.Close() }()
		So(store.Put(ctx, sample("a")), ShouldBeNil)
		So(store.Put(ctx, sample("b")), ShouldBeNil)

		Convey("When one session is touched and time passes", func() {
			c.Advance(20 * time.Minute)
			So(store.Put(ctx, sample("b")), ShouldBeNil)
			c.Advance(15 * time.Minute)

			Convey("Then only the untouched one has expired", func() {
				_, err := store.Get(ctx, "a")
				So(errors.Is(err, domain.ErrSessionNotFound), ShouldBeTrue)
				_, err = store.Get(ctx, "b")
				So(err, ShouldBeNil)
				n, _ := store.Len(ctx)
				So(n, ShouldEqual, 1)
				So(store.Sweep(), ShouldEqual, 1)
			})
		})
	})
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a redis store with a short TTL", t, func() {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()
		store := session.NewRedisStore(client, session.WithRedisTTL(time.Minute))
		So(store.Put(ctx, sample("a")), ShouldBeNil)

		Convey("When the TTL elapses", func() {
			mr.FastForward(2 * time.Minute)
			_, err := store.Get(ctx, "a")

			Convey("Then the session is gone", func() {
				So(errors.Is(err, domain.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When redis is down", func() {
			mr.Close()
			_, err := store.Get(ctx, "a")

			Convey("Then the store reports it as unavailable", func() {
				So(errors.Is(err, domain.ErrStoreUnavailable), ShouldBeTrue)
			})
		})
	})
}

func TestRedisWritesStayConstant(t *testing.T) {
	ctx := context.Background()

	Convey("Given a redis store holding many sessions", t, func() {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = client.Close() }()
		store := session.NewRedisStore(client)
		for i := range 200 {
			So(store.Put(ctx, sample("seed-"+strconv.Itoa(i))), ShouldBeNil)
		}

		Convey("When one more session is written and deleted", func() {
			before := mr.CommandCount()
			So(store.Put(ctx, sample("fresh")), ShouldBeNil)
			So(store.Delete(ctx, "fresh"), ShouldBeNil)
			issued := mr.CommandCount() - before

			Convey("Then the cost does not grow with the number of sessions", func() {
				So(issued, ShouldBeLessThan, 5)
				n, err := store.Len(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 200)
			})
		})
	})
}
