package audit

import (
	"context"
	"sync"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/metrics"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	defaultWorkers    = 2
	defaultBufferSize = 256
	saveTimeout       = 5 * time.Second
)

// Recorder turns finished calls into audit records and saves them on a
// small worker pool. Records are dropped when the queue is full so the
// request path never blocks on the database.
type Recorder struct {
	sink     Sink
	metrics  *metrics.Metrics
	tasks    chan *models.AIRequestLog
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}

	// mu orders sends against Stop: once closed is set no send can start,
	// so the workers' final drain sees every queued record.
	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts workers draining into sink
func NewRecorder(sink Sink, cfg models.AuditConfig, m *metrics.Metrics) *Recorder {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	r := &Recorder{
		sink:    sink,
		metrics: m,
		tasks:   make(chan *models.AIRequestLog, buffer),
		stopped: make(chan struct{}),
	}

	for range workers {
		r.wg.Add(1)
		go r.run()
	}

	return r
}

// Record queues one call for persistence. Records arriving after Stop or
// while the buffer is full are dropped and counted.
func (r *Recorder) Record(req models.AIRequest, resp models.AIResponse, duration time.Duration) {
	entry := Entry(req, resp, duration)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		fiberlog.Warnf("[%s] Audit recorder stopped, dropping record", req.RequestID)
		r.metrics.ObserveAuditDropped()
		return
	}

	select {
	case r.tasks <- entry:
	default:
		fiberlog.Warnf("[%s] Audit buffer full, dropping record", req.RequestID)
		r.metrics.ObserveAuditDropped()
	}
}

// Entry builds the audit record for a call
func Entry(req models.AIRequest, resp models.AIResponse, duration time.Duration) *models.AIRequestLog {
	operation := req.Operation
	if operation == "" {
		operation = "direct"
	}
	provider := resp.Provider
	if provider == "" {
		provider = models.ProviderNone
	}

	return &models.AIRequestLog{
		ID:         uuid.NewString(),
		RequestID:  req.RequestID,
		Operation:  operation,
		ClientKey:  req.ClientKey,
		Provider:   provider,
		Model:      resp.Model,
		Success:    resp.Success,
		ErrorKind:  string(resp.ErrorKind),
		Attempts:   len(resp.Attempts),
		TokensUsed: resp.TokensUsed,
		Cached:     resp.Cached,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.tasks:
			r.save(entry)
		case <-r.stopped:
			// Flush what is already queued
			for {
				select {
				case entry := <-r.tasks:
					r.save(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) save(entry *models.AIRequestLog) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := r.sink.Save(ctx, entry); err != nil {
		fiberlog.Errorf("[%s] Failed to record audit entry: %v", entry.RequestID, err)
	}
}

// Stop flushes queued records and waits for the workers
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.stopped)
		r.mu.Unlock()

		r.wg.Wait()
	})
}
