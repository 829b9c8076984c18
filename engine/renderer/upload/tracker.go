package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/oxygen3d/oxygen/engine/core"
)

// ErrorCode classifies terminal upload failures.
type ErrorCode uint8

const (
	CodeNone ErrorCode = iota
	CodeStagingAllocFailed
	CodeMapFailed
	CodeSubmitFailed
	CodeTicketNotFound
	CodeCanceled
	CodeValidationFailed
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeStagingAllocFailed:
		return "staging allocation failed"
	case CodeMapFailed:
		return "staging map failed"
	case CodeSubmitFailed:
		return "submission failed"
	case CodeTicketNotFound:
		return "ticket not found"
	case CodeCanceled:
		return "cancelled"
	case CodeValidationFailed:
		return "validation failed"
	default:
		return "unknown"
	}
}

// Ticket is the opaque token identifying one scheduled upload.
type Ticket struct {
	ID         uuid.UUID
	FenceValue uint64
	Bytes      uint64
	Name       string
}

// Result is the terminal outcome of a ticket.
type Result struct {
	TicketID      uuid.UUID
	BytesUploaded uint64
	Code          ErrorCode
}

func (r Result) Success() bool {
	return r.Code == CodeNone
}

type ticketEntry struct {
	ticket   Ticket
	slot     uint8
	result   *Result
	consumed bool
	done     chan struct{}
}

// Tracker registers upload tickets and drives them to completion as fence
// values retire. All public methods are safe for concurrent use.
type Tracker struct {
	mu                  sync.Mutex
	entries             map[uuid.UUID]*ticketEntry
	completedFence      uint64
	lastRegisteredFence uint64
	currentSlot         uint8
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[uuid.UUID]*ticketEntry),
	}
}

// Register creates a pending ticket that completes when the given fence
// value is reached.
func (t *Tracker) Register(fenceValue, bytes uint64, name string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	ticket := Ticket{
		ID:         uuid.New(),
		FenceValue: fenceValue,
		Bytes:      bytes,
		Name:       name,
	}
	if fenceValue > t.lastRegisteredFence {
		t.lastRegisteredFence = fenceValue
	}
	entry := &ticketEntry{
		ticket: ticket,
		slot:   t.currentSlot,
		done:   make(chan struct{}),
	}
	t.entries[ticket.ID] = entry
	// Already-retired fences complete immediately.
	if fenceValue <= t.completedFence {
		t.completeLocked(entry, Result{TicketID: ticket.ID, BytesUploaded: bytes})
	}
	return ticket
}

// RegisterFailedImmediate publishes a ticket that is already terminally
// failed, bound to the current completed fence.
func (t *Tracker) RegisterFailedImmediate(name string, code ErrorCode) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	ticket := Ticket{
		ID:         uuid.New(),
		FenceValue: t.completedFence,
		Name:       name,
	}
	entry := &ticketEntry{
		ticket: ticket,
		slot:   t.currentSlot,
		done:   make(chan struct{}),
	}
	t.entries[ticket.ID] = entry
	t.completeLocked(entry, Result{TicketID: ticket.ID, Code: code})
	core.LogWarn("upload '%s' failed immediately: %s", name, code)
	return ticket
}

// MarkFenceCompleted advances the completed fence. Lower values are
// ignored; every pending ticket at or below the new value completes with
// success.
func (t *Tracker) MarkFenceCompleted(value uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if value <= t.completedFence {
		return
	}
	t.completedFence = value
	for _, e := range t.entries {
		if e.result == nil && e.ticket.FenceValue <= value {
			t.completeLocked(e, Result{TicketID: e.ticket.ID, BytesUploaded: e.ticket.Bytes})
		}
	}
}

func (t *Tracker) completeLocked(e *ticketEntry, r Result) {
	e.result = &r
	close(e.done)
}

// IsComplete reports whether the ticket has reached a terminal state.
// Unknown tickets report true so callers do not wait on retired work.
func (t *Tracker) IsComplete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return true
	}
	return e.result != nil
}

// TryGetResult returns the terminal result exactly once. A second call for
// the same ticket, or a call for an unknown ticket, fails with not-found.
func (t *Tracker) TryGetResult(id uuid.UUID) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.consumed {
		return Result{TicketID: id, Code: CodeTicketNotFound}, fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	if e.result == nil {
		return Result{TicketID: id}, fmt.Errorf("ticket %s still pending: %w", id, core.ErrNotFound)
	}
	e.consumed = true
	return *e.result, nil
}

// Await suspends until the ticket completes, then consumes its result.
func (t *Tracker) Await(ctx context.Context, id uuid.UUID) (Result, error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return Result{TicketID: id, Code: CodeTicketNotFound}, fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	done := e.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Result{TicketID: id}, fmt.Errorf("awaiting ticket %s: %w", id, ctx.Err())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e.consumed {
		return Result{TicketID: id, Code: CodeTicketNotFound}, fmt.Errorf("ticket %s result already taken: %w", id, core.ErrNotFound)
	}
	e.consumed = true
	return *e.result, nil
}

// AwaitAll waits for every ticket and returns results in input order.
func (t *Tracker) AwaitAll(ctx context.Context, ids []uuid.UUID) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		r, err := t.Await(ctx, id)
		if err != nil && r.Code != CodeTicketNotFound {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Cancel marks a still-pending ticket as terminally cancelled. Returns true
// only if this call performed the cancellation.
func (t *Tracker) Cancel(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.result != nil {
		return false
	}
	t.completeLocked(e, Result{TicketID: id, Code: CodeCanceled})
	return true
}

// OnFrameStart retires every ticket registered in the given frame slot,
// completed or not, and stamps the slot for new registrations. Pending
// tickets from the slot's previous incarnation are woken as cancelled.
func (t *Tracker) OnFrameStart(tag string, slot uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentSlot = slot
	removed := 0
	for id, e := range t.entries {
		if e.slot != slot {
			continue
		}
		if e.result == nil {
			t.completeLocked(e, Result{TicketID: id, Code: CodeCanceled})
		}
		delete(t.entries, id)
		removed++
	}
	if removed > 0 {
		core.LogDebug("%s: retired %d upload tickets for slot %d", tag, removed, slot)
	}
}

func (t *Tracker) CompletedFenceValue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedFence
}

func (t *Tracker) LastRegisteredFenceValue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRegisteredFence
}

// PendingCount reports tickets that have not reached a terminal state.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.result == nil {
			n++
		}
	}
	return n
}
