package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"typedcode/internal/chain"
	"typedcode/internal/logging"
	"typedcode/internal/posw"
	"typedcode/internal/proof"
)

// Item is one queued proof submission.
type Item struct {
	// ID identifies the submission in every message. Left empty, the
	// queue assigns one.
	ID       string
	Filename string
	RawData  []byte
}

// Callback types. Callbacks run on the queue's dispatch goroutine;
// they must not block for long.
type (
	ProgressFunc func(p Progress)
	CompleteFunc func(id string, result *VerificationResultData)
	ErrorFunc    func(id string, err error)
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// job is a parsed submission moving through the queue.
type job struct {
	id       string
	filename string
	raw      []byte
	doc      *proof.Document
}

// envelope pairs a wire message with its typed error for callback
// delivery.
type envelope struct {
	msg Message
	err error
}

// Queue is the single-flight verification queue. Exactly one proof is
// in flight at a time; submissions queue FIFO, and the next item is
// dispatched only once the current item's terminal message (result or
// error) has been observed. One item crashing never stalls the queue.
type Queue struct {
	mu       sync.Mutex
	pending  []*job
	inflight *job
	closed   bool

	work   chan *job
	events chan envelope
	done   chan struct{}
	wg     sync.WaitGroup

	onProgress ProgressFunc
	onComplete CompleteFunc
	onError    ErrorFunc

	poswParams posw.Params
	sample     chain.SamplePolicy
	log        *logging.Logger

	// testFault lets tests inject a worker crash.
	testFault func(*job)
}

// Option configures a Queue.
type Option func(*Queue)

// WithPoSWParams sets the calibration used for timing checks.
func WithPoSWParams(p posw.Params) Option {
	return func(q *Queue) { q.poswParams = p }
}

// WithSamplePolicy sets the sampled-verification coverage.
func WithSamplePolicy(p chain.SamplePolicy) Option {
	return func(q *Queue) { q.sample = p }
}

// WithLogger sets the queue's logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// New creates a queue and starts its worker and dispatcher.
func New(opts ...Option) *Queue {
	q := &Queue{
		work:       make(chan *job, 1),
		events:     make(chan envelope, 64),
		done:       make(chan struct{}),
		poswParams: posw.DefaultParams(),
		sample:     chain.DefaultSamplePolicy(),
		log:        logging.Default().WithComponent("pipeline"),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(2)
	go q.worker()
	go q.dispatcher()
	return q
}

// SetOnProgress registers the progress callback.
func (q *Queue) SetOnProgress(fn ProgressFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onProgress = fn
}

// SetOnComplete registers the terminal-result callback.
func (q *Queue) SetOnComplete(fn CompleteFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onComplete = fn
}

// SetOnError registers the terminal-error callback.
func (q *Queue) SetOnError(fn ErrorFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onError = fn
}

// Enqueue submits a proof for verification and returns the assigned
// id. It never blocks on verification work: parsing happens here,
// synchronously, so malformed submissions fail fast with a
// *proof.CaptureFormatError and never occupy the execution slot.
func (q *Queue) Enqueue(item Item) (string, error) {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}

	doc, err := proof.Parse(item.RawData)
	if err != nil {
		if fe, ok := err.(*proof.CaptureFormatError); ok && fe.Filename == "" {
			fe.Filename = item.Filename
		}
		return id, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return id, ErrQueueClosed
	}

	q.pending = append(q.pending, &job{id: id, filename: item.Filename, raw: item.RawData, doc: doc})
	q.log.Debug("proof enqueued", "id", id, "filename", item.Filename, "events", len(doc.Events()))
	q.maybeDispatchLocked()
	return id, nil
}

// Cancel removes a not-yet-dispatched item from the pending queue.
// There is no mid-verification cancellation: once dispatched, an item
// runs to its terminal outcome.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.pending {
		if j.id == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.log.Debug("pending proof cancelled", "id", id)
			return true
		}
	}
	return false
}

// Done is closed once the queue has fully shut down.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// PendingLen returns the number of not-yet-dispatched items.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops dispatching. The in-flight item, if any, runs to its
// terminal outcome; pending items are dropped. Close waits for the
// worker and dispatcher to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	close(q.work)
	q.mu.Unlock()

	q.wg.Wait()
}

// maybeDispatchLocked hands the queue head to the worker when the
// execution slot is free. Caller holds q.mu.
func (q *Queue) maybeDispatchLocked() {
	if q.closed || q.inflight != nil || len(q.pending) == 0 {
		return
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	q.inflight = j
	q.work <- j
}

// worker is the execution unit: it runs one verification at a time
// and reports through the events channel. A panic inside a run is
// recovered and reported as that item's terminal ExecutionFault.
func (q *Queue) worker() {
	defer q.wg.Done()
	defer close(q.events)

	for j := range q.work {
		q.runOne(j)
	}
}

func (q *Queue) runOne(j *job) {
	defer func() {
		if r := recover(); r != nil {
			fault := &proof.ExecutionFault{ID: j.id, Panic: r}
			q.log.Error("verification worker fault", "id", j.id, "panic", fmt.Sprint(r))
			q.events <- envelope{
				msg: Message{Type: MsgError, ID: j.id, Error: fault.Error()},
				err: fault,
			}
		}
	}()

	if q.testFault != nil {
		q.testFault(j)
	}

	v := &verifier{
		posw:   q.poswParams,
		sample: q.sample,
		emit: func(m Message) {
			q.events <- envelope{msg: m}
		},
	}

	result, err := v.run(j.id, j.raw, j.doc)
	if err != nil {
		q.events <- envelope{
			msg: Message{Type: MsgError, ID: j.id, Error: err.Error()},
			err: err,
		}
		return
	}
	q.events <- envelope{msg: Message{Type: MsgResult, ID: j.id, Result: result}}
}

// dispatcher routes worker messages to callbacks and advances the
// queue on terminal messages.
func (q *Queue) dispatcher() {
	defer q.wg.Done()
	defer close(q.done)

	for env := range q.events {
		m := env.msg
		switch m.Type {
		case MsgProgress:
			if fn := q.progressFn(); fn != nil {
				fn(Progress{
					ID: m.ID, Current: m.Current, Total: m.Total,
					Phase: m.Phase, TotalEvents: m.TotalEvents, HashInfo: m.HashInfo,
				})
			}

		case MsgResult:
			if fn := q.completeFn(); fn != nil {
				fn(m.ID, m.Result)
			}
			q.advance()

		case MsgError:
			err := env.err
			if err == nil {
				err = errors.New(m.Error)
			}
			if fn := q.errorFn(); fn != nil {
				fn(m.ID, err)
			}
			q.advance()
		}
	}
}

func (q *Queue) advance() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inflight = nil
	q.maybeDispatchLocked()
}

func (q *Queue) progressFn() ProgressFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.onProgress
}

func (q *Queue) completeFn() CompleteFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.onComplete
}

func (q *Queue) errorFn() ErrorFunc {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.onError
}
