package domain

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"safeguard.io/safeguard/internal/pkg/logger"
)

// CommittedTransition describes a transition after it has been persisted.
type CommittedTransition struct {
	Event   *Event
	Actor   Actor
	Action  Action
	From    Status
	To      Status
	Payload map[string]string
	Audit   AuditEntry
}

// TransitionHandler reacts to a committed transition.
type TransitionHandler func(ctx context.Context, t *CommittedTransition) error

// TransitionDispatcher routes committed transitions to post-commit handlers.
// Handlers are side effects only: their failures never undo the transition.
type TransitionDispatcher struct {
	handlers map[Action][]TransitionHandler
	all      []TransitionHandler
	mu       sync.RWMutex
}

// NewTransitionDispatcher creates an empty TransitionDispatcher.
func NewTransitionDispatcher() *TransitionDispatcher {
	return &TransitionDispatcher{
		handlers: make(map[Action][]TransitionHandler),
	}
}

// Register registers a handler for a specific action.
func (d *TransitionDispatcher) Register(action Action, handler TransitionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = append(d.handlers[action], handler)
}

// RegisterAll registers a handler invoked for every action.
func (d *TransitionDispatcher) RegisterAll(handler TransitionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, handler)
}

// Dispatch calls every matching handler sequentially. If a handler fails the
// error is logged and the remaining handlers still run (best-effort delivery).
// The first error is returned for observability only.
func (d *TransitionDispatcher) Dispatch(ctx context.Context, t *CommittedTransition) error {
	if d == nil || t == nil {
		return nil
	}
	d.mu.RLock()
	handlers := make([]TransitionHandler, 0, len(d.all)+len(d.handlers[t.Action]))
	handlers = append(handlers, d.all...)
	handlers = append(handlers, d.handlers[t.Action]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("No handlers registered for action",
			zap.String("action", string(t.Action)),
			zap.String("event_id", t.Event.ID),
		)
		return nil
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, t); err != nil {
			logger.Error("Transition handler failed",
				zap.String("action", string(t.Action)),
				zap.String("event_id", t.Event.ID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("handler for %s failed: %w", t.Action, err)
			}
		}
	}

	return firstErr
}
