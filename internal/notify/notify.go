package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// EventType identifies a workflow notification. It is the last token of the subject.
type EventType string

const (
	EventSubmitted        EventType = "expense_submitted"
	EventApprovalRequired EventType = "expense_approval_required"
	EventApproved         EventType = "expense_approved"
	EventRejected         EventType = "expense_rejected"
)

// Event is the JSON document published for each workflow transition.
type Event struct {
	Type       EventType   `json:"event_type"`
	CompanyID  uuid.UUID   `json:"company_id"`
	ExpenseID  uuid.UUID   `json:"expense_id"`
	ActorID    uuid.UUID   `json:"actor_id"`
	Recipients []uuid.UUID `json:"recipients"`
	Status     string      `json:"status"`
	Amount     int64       `json:"amount"`
	Currency   string      `json:"currency"`
	Comment    string      `json:"comment,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher sends workflow events to NATS on <prefix>.<event_type>.
//
// Publishing never fails the caller: errors are logged and dropped. A nil
// *Publisher is valid and publishes nothing.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS. An empty url disables publishing and returns a nil Publisher.
func Connect(url, prefix string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name("outlay"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &Publisher{conn: conn, prefix: prefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, e Event) {
	if p == nil || p.conn == nil || len(e.Recipients) == 0 {
		return
	}

	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		slog.WarnContext(ctx, "failed to marshal notification event", "event_type", e.Type, "error", err)
		return
	}

	subj := Subject(p.prefix, e.Type)
	if err := p.conn.Publish(subj, data); err != nil {
		slog.WarnContext(ctx, "failed to publish notification event",
			"subject", subj,
			"expense_id", e.ExpenseID,
			"error", err,
		)

		return
	}

	slog.DebugContext(ctx, "notification event published",
		"subject", subj,
		"expense_id", e.ExpenseID,
		"recipients", len(e.Recipients),
	)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}

	if err := p.conn.Drain(); err != nil {
		slog.Warn("failed to drain nats connection", "error", err)
	}
}

// Subject returns the NATS subject for an event type.
func Subject(prefix string, t EventType) string {
	if prefix == "" {
		return string(t)
	}

	return prefix + "." + string(t)
}
