package notify

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/daylogapp/daylog/internal/transfer"
)

// Level grades a notification for rendering.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one transient user-facing message.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Token   string    `json:"token,omitempty"`
	At      time.Time `json:"at"`
}

// Queue is a FIFO notification buffer. One instance is constructed at
// startup and handed by reference to every layer that reports outcomes;
// there is no package-level fallback instance. Enqueue order is
// delivery order, so overlapping actions never clobber each other's
// messages.
type Queue struct {
	mu      sync.Mutex
	clock   func() time.Time
	pending []Notification
	closed  bool
}

// NewQueue constructs an empty queue. A nil clock uses time.Now.
func NewQueue(clock func() time.Time) *Queue {
	if clock == nil {
		clock = time.Now
	}
	return &Queue{clock: clock}
}

// Push appends a notification. Pushes after Close are dropped.
func (q *Queue) Push(level Level, message, token string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, Notification{
		Level:   level,
		Message: message,
		Token:   token,
		At:      q.clock(),
	})
}

// Next pops the oldest pending notification.
func (q *Queue) Next() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Notification{}, false
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	return next, true
}

// Drain pops everything pending, oldest first.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

// Len reports the number of pending notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close clears the queue and rejects further pushes. Called at app
// shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.closed = true
}

// User copy for the known transfer outcomes. Unknown failures fall back
// to a generic message rather than leaking internals.
const (
	msgSameCell      = "Source and target meal are the same."
	msgNothingToCopy = "Nothing to copy for that meal."
	msgGenericError  = "Something went wrong. Please try again."
)

// PushTransferError maps a transfer failure to user copy and enqueues
// it. Known sentinel tokens get specific copy; everything else gets the
// generic failure message.
func (q *Queue) PushTransferError(err error) {
	switch {
	case errors.Is(err, transfer.ErrSameCell):
		q.Push(LevelError, msgSameCell, transfer.TokenSameDate)
	case errors.Is(err, transfer.ErrNothingToCopy):
		q.Push(LevelInfo, msgNothingToCopy, transfer.TokenNothingToCopy)
	default:
		q.Push(LevelError, msgGenericError, "")
	}
}

// PushTransferResult enqueues the success toast for a completed
// transfer, including the displayed item count.
func (q *Queue) PushTransferResult(result transfer.Result) {
	q.Push(LevelSuccess, transferSuccessMessage(result), "")
}

func transferSuccessMessage(result transfer.Result) string {
	count := result.DisplayCount()
	if count == 1 {
		return "1 item transferred."
	}
	return strconv.Itoa(count) + " items transferred."
}
