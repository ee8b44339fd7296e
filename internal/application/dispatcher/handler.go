package dispatcher

import (
	"context"

	"github.com/garyjia/medallion-bpm/internal/domain/event"
)

// Handler processes domain events. Handlers run synchronously inside the
// caller's transaction context, so an error aborts the transition.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
