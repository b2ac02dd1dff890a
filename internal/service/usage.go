package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/209works/api-platform/internal/models"
)

// UsageWriter is the persistence surface the recorder needs.
type UsageWriter interface {
	CreateBatch(ctx context.Context, usages []*models.APIUsage) error
}

// UsageRecorder buffers usage facts and flushes them in batches from a
// background worker. Record never blocks and never fails the caller:
// telemetry loss is logged and swallowed.
type UsageRecorder struct {
	writer    UsageWriter
	ch        chan *models.APIUsage
	batchSize int
	interval  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewUsageRecorder(writer UsageWriter, bufferSize int) *UsageRecorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	r := &UsageRecorder{
		writer:    writer,
		ch:        make(chan *models.APIUsage, bufferSize),
		batchSize: 100,
		interval:  5 * time.Second,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	go r.run()

	return r
}

// Record queues one usage fact. Drops the fact when the buffer is full
// rather than blocking the request path.
func (r *UsageRecorder) Record(usage *models.APIUsage) {
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now().UTC()
	}

	select {
	case r.ch <- usage:
	default:
		log.Println("usage buffer full, dropping usage record")
	}
}

// Close flushes pending records and stops the worker.
func (r *UsageRecorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}

func (r *UsageRecorder) run() {
	defer close(r.done)

	batch := make([]*models.APIUsage, 0, r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.insert(batch)
		batch = make([]*models.APIUsage, 0, r.batchSize)
	}

	for {
		select {
		case usage := <-r.ch:
			batch = append(batch, usage)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.stop:
			// Drain whatever is already queued, then flush.
			for {
				select {
				case usage := <-r.ch:
					batch = append(batch, usage)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *UsageRecorder) insert(batch []*models.APIUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.writer.CreateBatch(ctx, batch); err != nil {
		log.Printf("failed to insert %d usage records: %v", len(batch), err)
	}
}
