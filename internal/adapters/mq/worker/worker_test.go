package worker_test

import (
	"context"
	"errors"
	"iter"
	"math/rand"
	"testing"
	"time"

	worker "github.com/okian/filmport/internal/adapters/mq/worker"
	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/types"
	logging "github.com/okian/filmport/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)


// numbered yields n rows {"n": i}; a non-nil failAt makes the source fail
// after that many rows.
func numbered(n int, failAt int, failErr error) iter.Seq2[worker.Row, error] {
	return func(yield func(worker.Row, error) bool) {
		for i := 0; i < n; i++ {
			if failErr != nil && i == failAt {
				yield(nil, failErr)
				return
			}
			if !yield(worker.Row{"n": i}, nil) {
				return
			}
		}
	}
}

// jitterDecode decodes {"n": i} with a random delay so workers finish out of order.
func jitterDecode(bad map[int]bool) worker.Decoder {
	return func(raw worker.Row) (record.Record, error) {
		n := raw["n"].(int)
		time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond) //nolint:gosec
		if bad[n] {
			return record.Record{}, &types.InvalidEnumValue{Table: "film_work", Field: "film_type", Raw: n}
		}
		return record.Record{Values: []any{n}}, nil
	}
}

func collect(out *[]int) worker.Sink {
	return func(rec record.Record) error {
		*out = append(*out, rec.Values[0].(int))
		return nil
	}
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		pool := worker.NewPool(4, worker.WithQueueSize(8))

		convey.Convey("When decoding a table of 500 rows", func() {
			var got []int
			err := pool.Run(ctx, "genre", numbered(500, 0, nil), jitterDecode(nil), collect(&got))

			convey.Convey("Then every record reaches the sink in source order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(got), convey.ShouldEqual, 500)
				for i, n := range got {
					if n != i {
						convey.So(n, convey.ShouldEqual, i)
						break
					}
				}
			})
		})

		convey.Convey("When decoding an empty table", func() {
			var got []int
			err := pool.Run(ctx, "genre", numbered(0, 0, nil), jitterDecode(nil), collect(&got))

			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldBeEmpty)
		})

		convey.Convey("When rows 120 and 40 fail to decode", func() {
			var got []int
			err := pool.Run(ctx, "film_work", numbered(300, 0, nil),
				jitterDecode(map[int]bool{40: true, 120: true}), collect(&got))

			convey.Convey("Then the first failure in source order is returned", func() {
				var enumErr *types.InvalidEnumValue
				convey.So(errors.As(err, &enumErr), convey.ShouldBeTrue)
				convey.So(enumErr.Raw, convey.ShouldEqual, 40)
			})

			convey.Convey("And only the rows before it were handed to the sink", func() {
				convey.So(len(got), convey.ShouldEqual, 40)
			})
		})

		convey.Convey("When the source fails mid-stream", func() {
			scanErr := &types.SourceQueryFailed{Table: "person", Cause: errors.New("disk I/O error")}
			var got []int
			err := pool.Run(ctx, "person", numbered(100, 30, scanErr), jitterDecode(nil), collect(&got))

			convey.Convey("Then the source error is returned", func() {
				var sq *types.SourceQueryFailed
				convey.So(errors.As(err, &sq), convey.ShouldBeTrue)
				convey.So(len(got), convey.ShouldBeLessThanOrEqualTo, 30)
			})
		})

		convey.Convey("When the sink rejects a record", func() {
			sinkErr := &types.WriteFailed{Table: "genre", Range: types.RowRange{From: 1, To: 11}, Cause: errors.New("boom")}
			calls := 0
			err := pool.Run(ctx, "genre", numbered(1000, 0, nil), jitterDecode(nil), func(record.Record) error {
				calls++
				if calls == 10 {
					return sinkErr
				}
				return nil
			})

			convey.Convey("Then the run stops with the sink error", func() {
				convey.So(errors.Is(err, sinkErr), convey.ShouldBeTrue)
				convey.So(calls, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			calls := 0
			err := pool.Run(cctx, "genre", numbered(10000, 0, nil), jitterDecode(nil), func(record.Record) error {
				calls++
				if calls == 5 {
					cancel()
				}
				return nil
			})

			convey.Convey("Then the run ends with the context error", func() {
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(calls, convey.ShouldBeLessThan, 10000)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given pool options", t, func() {
		_ = logging.Init()

		convey.Convey("When the worker count is not positive", func() {
			pool := worker.NewPool(0)

			convey.Convey("Then one worker per CPU is used", func() {
				convey.So(pool.Workers(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When a single worker is requested", func() {
			pool := worker.NewPool(1, worker.WithQueueSize(-5), worker.WithLogger(nil))
			var got []int
			err := pool.Run(context.Background(), "genre", numbered(20, 0, nil), jitterDecode(nil), collect(&got))

			convey.Convey("Then invalid options fall back to defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Workers(), convey.ShouldEqual, 1)
				convey.So(len(got), convey.ShouldEqual, 20)
			})
		})
	})
}

