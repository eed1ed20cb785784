package write

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pitabwire/util"
)

// Invalidation is the payload broadcast to other replicas after a write so
// their local caching tiers can drop the affected entries.
type Invalidation struct {
	Namespace string   `json:"namespace"`
	EntityID  string   `json:"entity_id,omitempty"`
	Field     string   `json:"field"`
	Locales   []string `json:"locales"`
}

// Broadcaster publishes invalidation messages after successful writes.
type Broadcaster interface {
	Publish(ctx context.Context, inv Invalidation) error
	Close()
}

// natsBroadcaster publishes invalidations on a per-namespace NATS subject.
type natsBroadcaster struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

const subjectPrefix = "localize.invalidate"

// NewNatsBroadcaster connects to NATS for invalidation broadcasting.
func NewNatsBroadcaster(url string) (Broadcaster, error) {
	conn, err := nats.Connect(url, nats.Name("localize-invalidation"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &natsBroadcaster{conn: conn}, nil
}

func (b *natsBroadcaster) Publish(_ context.Context, inv Invalidation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return b.conn.Publish(fmt.Sprintf("%s.%s", subjectPrefix, inv.Namespace), payload)
}

func (b *natsBroadcaster) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.conn.Close()
}

// Subscribe applies invalidations published by other replicas through the
// supplied invalidator. Malformed messages are logged and dropped.
func Subscribe(ctx context.Context, b Broadcaster, invalidator Invalidator) error {
	nb, ok := b.(*natsBroadcaster)
	if !ok {
		return fmt.Errorf("broadcaster %T does not support subscriptions", b)
	}

	sub, err := nb.conn.Subscribe(subjectPrefix+".>", func(msg *nats.Msg) {
		var inv Invalidation
		if unmarshalErr := json.Unmarshal(msg.Data, &inv); unmarshalErr != nil {
			util.Log(ctx).WithError(unmarshalErr).Warn("dropping malformed invalidation message")
			return
		}

		var entityID *uuid.UUID
		if inv.EntityID != "" {
			if id, parseErr := uuid.Parse(inv.EntityID); parseErr == nil {
				entityID = &id
			}
		}

		invalidator.Invalidate(ctx, inv.Namespace, entityID, inv.Field)
	})
	if err != nil {
		return err
	}

	nb.sub = sub
	return nil
}
