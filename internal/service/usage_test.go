package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/209works/api-platform/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsageWriter struct {
	mu      sync.Mutex
	batches [][]*models.APIUsage
}

func (w *fakeUsageWriter) CreateBatch(ctx context.Context, usages []*models.APIUsage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := make([]*models.APIUsage, len(usages))
	copy(batch, usages)
	w.batches = append(w.batches, batch)
	return nil
}

func (w *fakeUsageWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func TestUsageRecorderFlushesOnClose(t *testing.T) {
	writer := &fakeUsageWriter{}
	recorder := NewUsageRecorder(writer, 100)

	keyID := uuid.New()
	for i := 0; i < 7; i++ {
		recorder.Record(&models.APIUsage{
			APIKeyID:   keyID,
			Endpoint:   "/api/jobs",
			Method:     "GET",
			StatusCode: 200,
		})
	}
	recorder.Close()

	assert.Equal(t, 7, writer.total())
}

func TestUsageRecorderBatchesBySize(t *testing.T) {
	writer := &fakeUsageWriter{}
	recorder := NewUsageRecorder(writer, 500)

	for i := 0; i < 250; i++ {
		recorder.Record(&models.APIUsage{Endpoint: "/api/jobs", Method: "GET", StatusCode: 200})
	}
	recorder.Close()

	require.Equal(t, 250, writer.total())

	writer.mu.Lock()
	defer writer.mu.Unlock()
	// Worker cuts full batches of 100 as it drains; nothing exceeds the cap.
	for _, b := range writer.batches {
		assert.LessOrEqual(t, len(b), 100)
	}
}

func TestUsageRecorderDropsWhenFull(t *testing.T) {
	writer := &fakeUsageWriter{}
	recorder := &UsageRecorder{
		writer:    writer,
		ch:        make(chan *models.APIUsage, 2),
		batchSize: 100,
		interval:  time.Hour,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	// No worker running: the buffer fills and the overflow is dropped.
	for i := 0; i < 5; i++ {
		recorder.Record(&models.APIUsage{Endpoint: "/api/jobs"})
	}
	assert.Len(t, recorder.ch, 2)

	go recorder.run()
	recorder.Close()
	assert.Equal(t, 2, writer.total())
}

func TestUsageRecorderStampsTimestamp(t *testing.T) {
	writer := &fakeUsageWriter{}
	recorder := NewUsageRecorder(writer, 10)

	usage := &models.APIUsage{Endpoint: "/api/jobs"}
	recorder.Record(usage)
	recorder.Close()

	assert.False(t, usage.Timestamp.IsZero())
}

func TestUsageRecorderCloseIsIdempotent(t *testing.T) {
	recorder := NewUsageRecorder(&fakeUsageWriter{}, 10)
	recorder.Close()
	recorder.Close()
}
