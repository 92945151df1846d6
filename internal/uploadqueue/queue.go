// Package uploadqueue runs upload jobs with bounded concurrency, ascending
// priority order and a pause between consecutive starts.
//
// Each item moves pending -> active -> completed | failed. At most
// MaxConcurrent items are active at once. When an item finishes, its worker
// waits DelayBetweenUploads before trying to start the next one. Execution
// errors and panics are reported per item and never stop the queue.
//
// Listeners receive events synchronously, in subscription order, on the
// goroutine that produced the event. They may be called concurrently from
// different workers and must not block.
//
// Execute has no timeout. A hung item holds its slot until it returns.
//
// Finished items are remembered in a bounded ring, so ItemStatus only
// reports pending, active and recently finished items.
package uploadqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
	"github.com/manuchak/detecta-core/internal/logger"
	"github.com/manuchak/detecta-core/internal/metrics"
)

const (
	DefaultMaxConcurrent       = 3
	DefaultDelayBetweenUploads = 200 * time.Millisecond
	DefaultRetainFinished      = 1000
)

// Status is the lifecycle state of a queued item
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// EventType names a queue event
type EventType string

const (
	EventStart    EventType = "start"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
	EventEmpty    EventType = "empty"
)

// Event is delivered to listeners. ItemID is empty for EventEmpty.
type Event struct {
	Type   EventType
	ItemID string
	Err    error
}

// Listener receives queue events
type Listener func(Event)

// Item is a unit of work. Lower Priority values run first; equal priorities
// run in insertion order. A panic in OnStart, Execute or OnComplete fails the
// item; a panic in OnError is logged.
type Item struct {
	ID         string
	Priority   int
	Execute    func(ctx context.Context) error
	OnStart    func()
	OnComplete func()
	OnError    func(err error)
}

// Options configures a Queue
type Options struct {
	MaxConcurrent       int
	DelayBetweenUploads time.Duration
	// RetainFinished is how many finished items ItemStatus remembers.
	// Values below 1 become DefaultRetainFinished.
	RetainFinished int
	// Context is passed to every Execute call. Defaults to context.Background.
	Context context.Context
}

// Stats is a snapshot of queue counters
type Stats struct {
	Pending   int  `json:"pending"`
	Active    int  `json:"active"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Paused    bool `json:"paused"`
}

type subscription struct {
	id int
	fn Listener
}

// Queue is safe for concurrent use
type Queue struct {
	maxConcurrent int
	delay         time.Duration
	ctx           context.Context

	mu        sync.Mutex
	pending   []Item
	status    map[string]Status
	finished  []string // ring of recently finished IDs
	nextSlot  int
	active    int
	workers   int // goroutines alive, including those waiting out the delay
	completed int
	failed    int
	paused    bool
	subs      []subscription
	nextSub   int
	changed   chan struct{}
}

// New creates a queue. MaxConcurrent below 1 becomes DefaultMaxConcurrent and
// a negative delay becomes zero.
func New(opts Options) *Queue {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.DelayBetweenUploads < 0 {
		opts.DelayBetweenUploads = 0
	}
	if opts.RetainFinished < 1 {
		opts.RetainFinished = DefaultRetainFinished
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Queue{
		maxConcurrent: opts.MaxConcurrent,
		delay:         opts.DelayBetweenUploads,
		ctx:           opts.Context,
		status:        make(map[string]Status),
		finished:      make([]string, opts.RetainFinished),
		changed:       make(chan struct{}),
	}
}

// Add inserts item after every pending item of lower or equal priority and
// tries to start work. It returns the item ID, generating one when empty.
func (q *Queue) Add(item Item) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	q.mu.Lock()
	idx := len(q.pending)
	for i, p := range q.pending {
		if item.Priority < p.Priority {
			idx = i
			break
		}
	}
	q.pending = append(q.pending, Item{})
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = item
	q.status[item.ID] = StatusPending
	q.changedLocked()
	q.mu.Unlock()

	q.processNext()
	return item.ID
}

// Pause stops new items from starting. Active items run to completion.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.changedLocked()
	q.mu.Unlock()
}

// Resume lifts a pause and makes up to MaxConcurrent start attempts
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.changedLocked()
	q.mu.Unlock()

	for i := 0; i < q.maxConcurrent; i++ {
		q.processNext()
	}
}

// Clear drops all pending items. Active items are unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	for _, it := range q.pending {
		delete(q.status, it.ID)
	}
	q.pending = nil
	q.changedLocked()
	q.mu.Unlock()
}

// Subscribe registers l and returns a function that removes it
func (q *Queue) Subscribe(l Listener) (unsubscribe func()) {
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs = append(q.subs, subscription{id: id, fn: l})
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			for i, s := range q.subs {
				if s.id == id {
					q.subs = append(q.subs[:i:i], q.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Stats returns a snapshot of the counters
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		Active:    q.active,
		Completed: q.completed,
		Failed:    q.failed,
		Paused:    q.paused,
	}
}

// ItemStatus reports the state of a known item
func (q *Queue) ItemStatus(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.status[id]
	return s, ok
}

// Drain blocks until nothing is pending and every worker has exited. It
// returns ErrQueuePaused if the queue is paused with pending items, since
// those would never start.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 && q.workers == 0 {
			q.mu.Unlock()
			return nil
		}
		if q.paused && len(q.pending) > 0 && q.workers == 0 {
			q.mu.Unlock()
			return apperrors.ErrQueuePaused
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// changedLocked wakes Drain waiters. Caller holds q.mu.
func (q *Queue) changedLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
	metrics.SetUploadQueueDepth(len(q.pending), q.active)
}

// processNext is one dequeue attempt. The empty event is only raised here,
// when an attempt finds nothing pending and nothing active.
func (q *Queue) processNext() {
	q.mu.Lock()
	if q.paused || q.active >= q.maxConcurrent {
		q.mu.Unlock()
		return
	}
	if len(q.pending) == 0 {
		idle := q.active == 0
		q.mu.Unlock()
		if idle {
			q.emit(Event{Type: EventEmpty})
		}
		return
	}

	item := q.pending[0]
	q.pending[0] = Item{}
	q.pending = q.pending[1:]
	q.active++
	q.workers++
	q.status[item.ID] = StatusActive
	q.changedLocked()
	q.mu.Unlock()

	go q.run(item)
}

func (q *Queue) run(item Item) {
	err := q.process(item)

	q.mu.Lock()
	if err == nil {
		q.completed++
	} else {
		q.failed++
	}
	q.finishLocked(item.ID, err)
	q.mu.Unlock()

	if err == nil {
		metrics.RecordUpload(string(StatusCompleted))
		q.emit(Event{Type: EventComplete, ItemID: item.ID})
	} else {
		metrics.RecordUpload(string(StatusFailed))
		logger.With("uploadqueue").Warn("Upload failed", "item_id", item.ID, "error", err)
		q.reportError(item, err)
		q.emit(Event{Type: EventError, ItemID: item.ID, Err: err})
	}

	q.mu.Lock()
	q.active--
	q.changedLocked()
	q.mu.Unlock()

	if q.delay > 0 {
		time.Sleep(q.delay)
	}
	q.processNext()

	q.mu.Lock()
	q.workers--
	q.changedLocked()
	q.mu.Unlock()
}

// finishLocked records the terminal status of id and forgets the oldest
// finished item once the ring is full. Caller holds q.mu.
func (q *Queue) finishLocked(id string, err error) {
	if err == nil {
		q.status[id] = StatusCompleted
	} else {
		q.status[id] = StatusFailed
	}

	if old := q.finished[q.nextSlot]; old != "" && old != id {
		if st := q.status[old]; st == StatusCompleted || st == StatusFailed {
			delete(q.status, old)
		}
	}
	q.finished[q.nextSlot] = id
	q.nextSlot = (q.nextSlot + 1) % len(q.finished)
}

// process runs OnStart, Execute and OnComplete, turning a nil Execute or a
// panic in any of them into an error
func (q *Queue) process(item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.UploadError{ItemID: item.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if item.OnStart != nil {
		item.OnStart()
	}
	q.emit(Event{Type: EventStart, ItemID: item.ID})

	if item.Execute == nil {
		return apperrors.UploadError{ItemID: item.ID, Err: fmt.Errorf("no execute function: %w", apperrors.ErrInvalidInput)}
	}
	if err := item.Execute(q.ctx); err != nil {
		return apperrors.UploadError{ItemID: item.ID, Err: err}
	}

	if item.OnComplete != nil {
		item.OnComplete()
	}
	return nil
}

// reportError calls OnError; a panic there is logged and swallowed
func (q *Queue) reportError(item Item, err error) {
	if item.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.With("uploadqueue").Error("OnError callback panicked", "item_id", item.ID, "panic", r)
		}
	}()
	item.OnError(err)
}

// emit calls every listener in subscription order outside the lock. A
// panicking listener is logged and does not affect the others.
func (q *Queue) emit(ev Event) {
	q.mu.Lock()
	subs := make([]subscription, len(q.subs))
	copy(subs, q.subs)
	q.mu.Unlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.With("uploadqueue").Error("Queue listener panicked", "event", ev.Type, "panic", r)
				}
			}()
			s.fn(ev)
		}()
	}
}
