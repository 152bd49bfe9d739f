// Package worker runs the write side of the memory engine off the request
// path: persisting new memories into both backends, recomputing the cached
// user narrative, and invalidating stale context plans.
//
// Everything here is fire-and-forget from the caller's point of view, with
// two guarantees. Writes always run to completion even when the request
// that triggered them is abandoned (losing a user's memory is worse than
// wasted read work), and work for one user is serialized relative to
// itself, so a narrative recomputation never clobbers a newer one.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemohq/mnemo-go-sdk/core"
	"github.com/mnemohq/mnemo-go-sdk/search"
)

// Config tunes the worker.
type Config struct {
	// QueueSize bounds each user's pending-job queue. Default 64.
	QueueSize int

	// MaxRetries bounds write attempts per backend before the job is
	// dead-lettered. Default 3.
	MaxRetries int

	// RetryBackoff is the base delay between attempts, scaled linearly.
	// Default 100ms.
	RetryBackoff time.Duration

	// WriteTimeout bounds one backend write attempt. Default 5s.
	WriteTimeout time.Duration

	// IdleTTL is how long an empty user queue lingers before its
	// goroutine exits. Default 1m.
	IdleTTL time.Duration

	// NarrativeRecent is how many recent episodes feed narrative
	// synthesis. Default 20.
	NarrativeRecent int

	// NarrativeTimeout bounds one narrative synthesis. Default 10s.
	NarrativeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = time.Minute
	}
	if c.NarrativeRecent <= 0 {
		c.NarrativeRecent = 20
	}
	if c.NarrativeTimeout <= 0 {
		c.NarrativeTimeout = 10 * time.Second
	}
}

// PlanInvalidator drops cached plans for a user after their memory set
// changes. *plancache.Cache satisfies it.
type PlanInvalidator interface {
	Invalidate(userID string)
}

// Synthesizer turns a user's recent memories into a short standing
// narrative.
type Synthesizer interface {
	Narrate(ctx context.Context, userID string, items []core.MemoryItem) (string, error)
}

// Sink is a named persistence target.
type Sink struct {
	Name  string
	Store search.Persister
}

// DeadLetter records a write that exhausted its retries. Dead letters are
// kept for manual follow-up; they are never retried automatically.
type DeadLetter struct {
	ID     string
	UserID string
	AppID  string
	Text   string
	Sink   string
	Err    error
	At     time.Time
}

// Deps wires the worker's collaborators. Sinks is required; everything
// else is optional and skipped when nil.
type Deps struct {
	Sinks      []Sink
	Episodes   search.RecentLister
	Synth      Synthesizer
	Narratives *NarrativeCache
	Plans      PlanInvalidator
	Logger     *zap.Logger
}

type job struct {
	userID string
	appID  string
	text   string
}

// Worker is the background ingestion and narrative worker.
type Worker struct {
	cfg  Config
	deps Deps

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	queues map[string]chan job
	closed bool
	wg     sync.WaitGroup

	deadMu sync.Mutex
	dead   []DeadLetter
}

// New creates a worker.
func New(cfg Config, deps Deps) *Worker {
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("worker")

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:     cfg,
		deps:    deps,
		baseCtx: ctx,
		cancel:  cancel,
		queues:  make(map[string]chan job),
	}
}

// OnMemoryWritten enqueues persistence and narrative recomputation for a
// new memory. It never blocks the caller: a full queue dead-letters the
// job immediately rather than stalling the request path.
func (w *Worker) OnMemoryWritten(userID, appID, text string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.deadLetter(job{userID, appID, text}, "worker", context.Canceled)
		return
	}
	ch, ok := w.queues[userID]
	if !ok {
		ch = make(chan job, w.cfg.QueueSize)
		w.queues[userID] = ch
		w.wg.Add(1)
		go w.drain(userID, ch)
	}

	// Enqueue under the lock so the idle teardown in drain, which checks
	// queue length under the same lock, can never discard a queue that
	// just received a job.
	full := false
	select {
	case ch <- job{userID: userID, appID: appID, text: text}:
	default:
		full = true
	}
	w.mu.Unlock()

	if full {
		w.deadLetter(job{userID, appID, text}, "queue", core.ErrPersistenceFailure)
	}
}

// Close stops intake, drains every queue to completion, and releases
// resources. In-flight and queued writes finish; they are never cancelled.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, ch := range w.queues {
		close(ch)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
}

// DeadLetters returns a snapshot of the dead-letter list.
func (w *Worker) DeadLetters() []DeadLetter {
	w.deadMu.Lock()
	defer w.deadMu.Unlock()
	out := make([]DeadLetter, len(w.dead))
	copy(out, w.dead)
	return out
}

// drain serializes all work for one user. The goroutine exits when its
// queue is closed or has sat idle for IdleTTL.
func (w *Worker) drain(userID string, ch chan job) {
	defer w.wg.Done()

	idle := time.NewTimer(w.cfg.IdleTTL)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-ch:
			if !ok {
				return
			}
			w.process(j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(w.cfg.IdleTTL)

		case <-idle.C:
			w.mu.Lock()
			if len(ch) == 0 && !w.closed {
				delete(w.queues, userID)
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
			idle.Reset(w.cfg.IdleTTL)
		}
	}
}

func (w *Worker) process(j job) {
	for _, sink := range w.deps.Sinks {
		w.persist(j, sink)
	}

	if w.deps.Plans != nil {
		w.deps.Plans.Invalidate(j.userID)
	}

	w.recomputeNarrative(j.userID)
}

// persist writes one memory to one backend with bounded retries. Backend
// writes are idempotent per (user, text hash), so a retry after an
// ambiguous failure is safe.
func (w *Worker) persist(j job, sink Sink) {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(w.baseCtx, w.cfg.WriteTimeout)
		_, err := sink.Store.Write(ctx, j.userID, j.appID, j.text)
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		w.deps.Logger.Warn("memory write failed",
			zap.String("sink", sink.Name),
			zap.String("user_id", j.userID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < w.cfg.MaxRetries {
			time.Sleep(w.cfg.RetryBackoff * time.Duration(attempt))
		}
	}
	w.deadLetter(j, sink.Name, lastErr)
}

func (w *Worker) deadLetter(j job, sink string, cause error) {
	entry := DeadLetter{
		ID:     uuid.New().String(),
		UserID: j.userID,
		AppID:  j.appID,
		Text:   j.text,
		Sink:   sink,
		Err:    cause,
		At:     time.Now(),
	}
	w.deadMu.Lock()
	w.dead = append(w.dead, entry)
	w.deadMu.Unlock()

	w.deps.Logger.Error("memory write dead-lettered",
		zap.String("id", entry.ID),
		zap.String("sink", sink),
		zap.String("user_id", j.userID),
		zap.Error(cause))
}

// recomputeNarrative refreshes the user's standing narrative from their
// recent episodes. Serialization per user comes for free from the queue.
func (w *Worker) recomputeNarrative(userID string) {
	if w.deps.Episodes == nil || w.deps.Narratives == nil {
		return
	}

	ctx, cancel := context.WithTimeout(w.baseCtx, w.cfg.NarrativeTimeout)
	defer cancel()

	items, err := w.deps.Episodes.Recent(ctx, userID, w.cfg.NarrativeRecent)
	if err != nil {
		w.deps.Logger.Warn("narrative source unavailable",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	narrative := ""
	if w.deps.Synth != nil {
		narrative, err = w.deps.Synth.Narrate(ctx, userID, items)
		if err != nil {
			w.deps.Logger.Warn("narrative synthesis failed, using digest",
				zap.String("user_id", userID), zap.Error(err))
			narrative = ""
		}
	}
	if narrative == "" {
		narrative = digestNarrative(items)
	}

	w.deps.Narratives.Put(userID, narrative)
}
