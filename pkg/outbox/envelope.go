package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/auth"
)

// ActorRef identifies who produced the event. Operator is the opaque identity
// taken from the bearer token; system jobs leave it empty and set Source.
type ActorRef struct {
	Operator string `json:"operator,omitempty"`
	Source   string `json:"source,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ActorFromContext builds the actor of an event from the request operator,
// tagging it with the component that emitted it.
func ActorFromContext(ctx context.Context, source string) *ActorRef {
	ref := &ActorRef{Operator: auth.OperatorFromContext(ctx), Source: source}
	if ref.Operator == "" && ref.Source == "" {
		return nil
	}
	return ref
}
