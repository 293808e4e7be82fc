package jetstream

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/weegigs/wee-ledger-go/we"
)

// Notifier publishes notifications on core NATS under
// <subject>.<aggregate type>.
type Notifier struct {
	connection *nats.Conn
	subject    string
}

func NewNotifier(connection *nats.Conn, subject string) *Notifier {
	return &Notifier{connection: connection, subject: subject}
}

func (n *Notifier) Subject(source we.AggregateId) string {
	return n.subject + "." + source.Type
}

func (n *Notifier) Notify(ctx context.Context, notification we.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	return n.connection.Publish(n.Subject(notification.Source), data)
}
