// Package analytics records recommendation queries. The Collector batches
// query events and publishes them to Kafka; the Aggregator keeps running
// in-process totals for the stats endpoint.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-recommender/pkg/kafka"
)

// BatchPublisher writes a batch of events in one call. *kafka.Producer
// satisfies it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers query events and flushes them when the buffer reaches
// batchSize or every flushInterval, whichever comes first. Failed batches
// are re-queued up to three batches' worth; older overflow is dropped.
type Collector struct {
	publisher     BatchPublisher
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	buffer  []kafka.Event
	flushMu sync.Mutex

	published atomic.Int64
	dropped   atomic.Int64
	done      chan struct{}
}

// NewCollector creates a Collector. Non-positive arguments fall back to 100
// events and 5 seconds.
func NewCollector(publisher BatchPublisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		done:          make(chan struct{}),
	}
}

// Start launches the periodic flush loop. When ctx is cancelled the loop
// makes a final flush and Close returns.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers event and triggers an asynchronous flush once the buffer is
// full. It never blocks on Kafka.
func (c *Collector) Track(event QueryEvent) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: event.RequestID, Value: event})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		go c.Flush(context.Background())
	}
}

// Flush publishes everything buffered so far.
func (c *Collector) Flush(ctx context.Context) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "events", len(batch), "error", err)
		c.requeue(batch)
		return
	}
	c.published.Add(int64(len(batch)))
	c.logger.Debug("batch flushed", "events", len(batch))
}

func (c *Collector) requeue(batch []kafka.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(batch, c.buffer...)
	if limit := c.batchSize * 3; len(c.buffer) > limit {
		over := len(c.buffer) - limit
		c.buffer = c.buffer[over:]
		c.dropped.Add(int64(over))
		c.logger.Warn("analytics buffer overflow, oldest events dropped", "dropped", over)
	}
}

// Close waits for the flush loop started by Start to finish.
func (c *Collector) Close() {
	<-c.done
}

// Pending returns the number of buffered events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Published returns the number of events successfully published.
func (c *Collector) Published() int64 {
	return c.published.Load()
}

// Dropped returns the number of events discarded on overflow.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}
