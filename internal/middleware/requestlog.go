package middleware

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailit/tracking-gateway/internal/models"
)

const (
	logBufferSize    = 1024
	logFlushSize     = 100
	logFlushInterval = 5 * time.Second
	logInsertTimeout = 10 * time.Second
)

type requestLogStore interface {
	InsertBatch(ctx context.Context, logs []models.RequestLog) error
}

// RequestLogger records request metadata asynchronously so the hot path
// never waits on the database. Entries are buffered in a channel and
// flushed in batches by a background worker; when the buffer is full
// entries are dropped rather than blocking the request.
type RequestLogger struct {
	store requestLogStore
	ch    chan models.RequestLog
	done  chan struct{}
}

func NewRequestLogger(store requestLogStore) *RequestLogger {
	l := &RequestLogger{
		store: store,
		ch:    make(chan models.RequestLog, logBufferSize),
		done:  make(chan struct{}),
	}
	go l.worker()
	return l
}

// Middleware captures one log entry per completed request.
func (l *RequestLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := models.RequestLog{
			Timestamp:      start,
			CorrelationID:  CorrelationID(c),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}
		if tenant := TenantFrom(c); tenant != nil {
			id := tenant.ID
			entry.TenantID = &id
		}

		select {
		case l.ch <- entry:
		default:
			// Buffer full. Losing an audit row beats stalling traffic.
		}
	}
}

// Close flushes buffered entries and stops the worker.
func (l *RequestLogger) Close() {
	close(l.ch)
	<-l.done
}

func (l *RequestLogger) worker() {
	defer close(l.done)

	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()

	batch := make([]models.RequestLog, 0, logFlushSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), logInsertTimeout)
		if err := l.store.InsertBatch(ctx, batch); err != nil {
			log.Printf("failed to insert %d request logs: %v", len(batch), err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-l.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= logFlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
