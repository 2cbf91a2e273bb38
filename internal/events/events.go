// Package events carries row-level change notifications from the code that
// commits a mutation to everything that wants to react to it: browsers
// listening on /events, the report cache, other server instances.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Tables that publish changes.
const (
	TableExpenses        = "expenses"
	TablePlannedExpenses = "planned_expenses"
	TablePayments        = "planned_expense_payments"
	TableCategories      = "categories"
	TableSubcategories   = "subcategories"
	TablePeople          = "people"
	TableActivities      = "activities"
)

// ChangeEvent describes one committed row change.
type ChangeEvent struct {
	ID        string    `json:"id"`
	Table     string    `json:"table"`
	Op        Op        `json:"op"`
	RowID     int64     `json:"row_id"`
	Timestamp time.Time `json:"timestamp"`
	// Origin identifies the instance that published the change on a broker.
	Origin string `json:"origin,omitempty"`
}

// NewChange stamps a change with a fresh id and the current time.
func NewChange(table string, op Op, rowID int64) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.NewString(),
		Table:     table,
		Op:        op,
		RowID:     rowID,
		Timestamp: time.Now().UTC(),
	}
}

func (e ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON decodes a change and rejects messages without a table.
func ChangeEventFromJSON(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, err
	}
	if e.Table == "" {
		return ChangeEvent{}, fmt.Errorf("change event without table")
	}
	return e, nil
}

// Publisher sends committed changes somewhere.
type Publisher interface {
	Publish(ctx context.Context, e ChangeEvent) error
}

// Multi publishes every change to each publisher in order. A failing
// publisher does not stop the ones after it; the errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e ChangeEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Hub fans changes out to in-process subscribers. A subscriber that falls
// behind loses events rather than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan ChangeEvent
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan ChangeEvent)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release it; the channel is closed afterwards.
func (h *Hub) Subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ChangeEvent, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every current subscriber.
func (h *Hub) Publish(ctx context.Context, e ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			slog.WarnContext(ctx, "Dropping change event for slow subscriber",
				"subscriber", id,
				"table", e.Table,
				"op", e.Op)
		}
	}
	return nil
}

// Subscribers returns the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// PublishAll sends each change and logs failures. Callers use it after a
// commit, when the data is already durable and a lost notification must not
// turn into a failed request.
func PublishAll(ctx context.Context, p Publisher, changes ...ChangeEvent) {
	if p == nil {
		return
	}
	for _, c := range changes {
		if err := p.Publish(ctx, c); err != nil {
			slog.ErrorContext(ctx, "Failed to publish change event",
				"table", c.Table,
				"op", c.Op,
				"row_id", c.RowID,
				"error", err)
		}
	}
}
