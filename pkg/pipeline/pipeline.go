// Package pipeline copies records from a source to a sink in fixed-size
// batches, counting committed records and reporting the first failure.
package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/time/rate"

	"github.com/arrowarc/chingest/internal/errors"
	"github.com/arrowarc/chingest/internal/interfaces"
	"github.com/arrowarc/chingest/internal/logging"
	"github.com/arrowarc/chingest/pkg/record"
)

const DefaultBatchSize = 1000

// Options tunes a DataPipeline. RowsPerSecond of zero disables throttling.
type Options struct {
	BatchSize     int
	RowsPerSecond float64
	Logger        log.Logger
	// Interrupt, when set, is called once the writer stops. It cancels work
	// a source started with its own context, such as an open cursor.
	Interrupt     func()
}

// DataPipeline drives a source into a sink. A reader goroutine pulls the
// next batch while the writer commits the current one.
type DataPipeline struct {
	source    interfaces.Source
	sink      interfaces.Sink
	size      int
	limiter   *rate.Limiter
	logger    log.Logger
	interrupt func()
}

// NewDataPipeline creates a pipeline. A BatchSize below one uses
// DefaultBatchSize.
func NewDataPipeline(source interfaces.Source, sink interfaces.Sink, opts Options) *DataPipeline {
	size := opts.BatchSize
	if size < 1 {
		size = DefaultBatchSize
	}
	dp := &DataPipeline{
		source:    source,
		sink:      sink,
		size:      size,
		logger:    logging.Component(opts.Logger, "pipeline"),
		interrupt: opts.Interrupt,
	}
	if opts.RowsPerSecond > 0 {
		dp.limiter = rate.NewLimiter(rate.Limit(opts.RowsPerSecond), size)
	}
	return dp
}

type item struct {
	rec record.Record
	pos int64
	err error
}

type batch struct {
	items []item
	err   error
	last  bool
}

// Run copies until the source is exhausted, a transport error occurs or ctx
// is canceled. Source and sink are closed before Run returns.
func (dp *DataPipeline) Run(ctx context.Context) *Result {
	res := newResult()
	logger := log.With(dp.logger, "transfer", res.ID.String())
	level.Info(logger).Log("msg", "transfer started", "batch_size", dp.size)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make(chan batch, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dp.startReader(runCtx, batches, logger)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		dp.startWriter(runCtx, batches, res, logger)
		if dp.interrupt != nil {
			dp.interrupt()
		}
	}()
	wg.Wait()

	res.finish()
	if res.Err != nil {
		level.Warn(logger).Log("msg", "transfer finished with errors", "status", res.Status,
			"records", res.Records, "failed", res.Failed, "err", res.Err)
	} else {
		level.Info(logger).Log("msg", "transfer finished", "status", res.Status,
			"records", res.Records, "duration", res.Duration())
	}
	return res
}

// startReader pulls records into batches and sends them to the writer.
func (dp *DataPipeline) startReader(ctx context.Context, out chan<- batch, logger log.Logger) {
	defer close(out)
	defer func() {
		if err := dp.source.Close(); err != nil {
			level.Warn(logger).Log("msg", "failed to close source", "err", err)
		}
	}()

	send := func(b batch) bool {
		select {
		case out <- b:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var pos int64
	for {
		b := batch{items: make([]item, 0, dp.size)}
		for len(b.items) < dp.size {
			if ctx.Err() != nil {
				return
			}
			rec, err := dp.source.Next(ctx)
			if err == io.EOF {
				b.last = true
				break
			}
			if err != nil {
				if errors.IsRecordLevel(err) {
					pos++
					if errors.Position(err) == 0 {
						err = &errors.RecordError{Position: pos, Err: err}
					}
					b.items = append(b.items, item{pos: pos, err: err})
					continue
				}
				if ctx.Err() != nil {
					return
				}
				b.err = &errors.TransferError{Op: "read", Err: err}
				send(b)
				return
			}
			pos++
			b.items = append(b.items, item{rec: rec, pos: pos})
		}

		if dp.limiter != nil && len(b.items) > 0 {
			if err := dp.limiter.WaitN(ctx, len(b.items)); err != nil {
				if ctx.Err() == nil {
					send(batch{err: &errors.TransferError{Op: "throttle", Err: err}})
				}
				return
			}
		}
		if !send(b) || b.last {
			return
		}
	}
}

// startWriter writes each batch and commits it with Flush. A batch counts
// toward the result only once Flush succeeds.
func (dp *DataPipeline) startWriter(ctx context.Context, in <-chan batch, res *Result, logger log.Logger) {
	defer func() {
		if err := dp.sink.Close(); err != nil && !res.fatal {
			res.abort(&errors.TransferError{Op: "close", Err: err})
		}
	}()

	for {
		var b batch
		var ok bool
		select {
		case <-ctx.Done():
			res.abort(&errors.TransferError{Op: "cancel", Err: ctx.Err()})
			return
		case b, ok = <-in:
		}
		if !ok || ctx.Err() != nil {
			err := context.Cause(ctx)
			if err == nil {
				err = context.Canceled
			}
			res.abort(&errors.TransferError{Op: "cancel", Err: err})
			return
		}
		if b.err != nil {
			res.abort(b.err)
			return
		}

		var written int64
		var sum uint64
		for _, it := range b.items {
			if it.err != nil {
				skip(res, it.err, logger)
				continue
			}
			if ctx.Err() != nil {
				res.abort(&errors.TransferError{Op: "cancel", Err: ctx.Err()})
				return
			}
			if err := dp.sink.Write(ctx, it.rec); err != nil {
				if errors.IsRecordLevel(err) {
					skip(res, &errors.RecordError{Position: it.pos, Err: err}, logger)
					continue
				}
				res.abort(&errors.TransferError{Op: "write", Err: err})
				return
			}
			written++
			sum += xxhash.Sum64String(it.rec.Canonical())
		}

		if ctx.Err() != nil {
			res.abort(&errors.TransferError{Op: "cancel", Err: ctx.Err()})
			return
		}
		if err := dp.sink.Flush(ctx); err != nil {
			res.abort(&errors.TransferError{Op: "flush", Err: err})
			return
		}
		res.Records += written
		res.Checksum += sum
		level.Debug(logger).Log("msg", "batch committed", "rows", written, "total", res.Records)

		if b.last {
			return
		}
	}
}

func skip(res *Result, err error, logger log.Logger) {
	if res.fail(err) {
		level.Warn(logger).Log("msg", "skipping record", "position", errors.Position(err), "err", err)
	}
}

// Copy runs a pipeline once with opts.
func Copy(ctx context.Context, source interfaces.Source, sink interfaces.Sink, opts Options) *Result {
	return NewDataPipeline(source, sink, opts).Run(ctx)
}
