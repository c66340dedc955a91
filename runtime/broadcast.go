package runtime

import (
	"context"
	"log/slog"

	"room-chat/contract"
	"room-chat/domain"
	"room-chat/domain/event"
	"room-chat/observability"
)

// Broadcaster delivers one event to every live member of a room.
//
// Delivery is best-effort and fire-and-forget per target: a closed or full
// transport is logged and skipped, the remaining targets still receive the event
// and nothing is reported back to the command that triggered it.
type Broadcaster struct {
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewBroadcaster(log *slog.Logger, metrics *observability.Metrics) Broadcaster {
	return Broadcaster{log: log, metrics: metrics}
}

// Targets resolves the live transports of room members, skipping exclude.
// A transport shared by several identities is addressed once.
func (b Broadcaster) Targets(room *domain.Room, connections *ConnectionRegistry, exclude domain.IdentityID) []*Connection {
	seen := make(map[contract.EventSink]struct{}, room.Size())
	targets := make([]*Connection, 0, room.Size())
	for _, memberID := range room.Members() {
		if memberID == exclude {
			continue
		}
		conn, ok := connections.Find(memberID)
		if !ok {
			continue
		}
		if _, dup := seen[conn.Sink]; dup {
			continue
		}
		seen[conn.Sink] = struct{}{}
		targets = append(targets, conn)
	}
	return targets
}

func (b Broadcaster) Deliver(roomID domain.RoomID, targets []*Connection, evt event.Event) {
	b.metrics.Broadcasts.WithLabelValues(string(evt.Name())).Inc()
	for _, target := range targets {
		b.Send(target, evt)
	}
}

// Send enqueues evt on one connection and swallows the failure.
func (b Broadcaster) Send(target *Connection, evt event.Event) {
	if err := target.Sink.Consume(context.Background(), evt); err != nil {
		b.metrics.DeliveryFailures.Inc()
		b.log.Warn("Failed to deliver event",
			"user_id", target.Identity.ID,
			"event", evt.Name(),
			"error", err)
		return
	}
	b.metrics.Deliveries.Inc()
	b.log.Debug("Event delivered", "user_id", target.Identity.ID, "event", evt.Name())
}
