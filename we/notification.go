package we

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notification is an event handed to external consumers once the write that
// produced it has been committed. Notifications are not part of an aggregate's
// history.
type Notification struct {
	Source    AggregateId `json:"source"`
	Revision  Revision    `json:"revision"`
	EventType EventType   `json:"type"`
	Timestamp Timestamp   `json:"timestamp"`
	Data      Data        `json:"data"`
}

func NewNotification(source AggregateId, revision Revision, event DomainEvent) (Notification, error) {
	data, err := MarshalToData(event)
	if err != nil {
		return Notification{}, err
	}

	return Notification{
		Source:    source,
		Revision:  revision,
		EventType: EventTypeOf(event),
		Timestamp: TimestampFromTime(time.Now()),
		Data:      data,
	}, nil
}

func (n Notification) Decode(value any) error {
	return UnmarshalFromData(n.Data, value)
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

type NotifierFunc func(ctx context.Context, notification Notification) error

func (f NotifierFunc) Notify(ctx context.Context, notification Notification) error {
	return f(ctx, notification)
}

// Deposit hands event to notifier on behalf of a committed write at revision.
// The write can no longer be undone, so a failed hand-off is logged rather
// than returned.
func Deposit(ctx context.Context, notifier Notifier, source AggregateId, revision Revision, event DomainEvent) {
	if notifier == nil {
		return
	}

	notification, err := NewNotification(source, revision, event)
	if err == nil {
		err = notifier.Notify(ctx, notification)
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("aggregate", source.String()).
			Str("revision", revision.String()).
			Str("type", EventTypeOf(event).String()).
			Msg("failed to deposit notification")
	}
}

// NotificationLog keeps notifications in memory, in the order received.
type NotificationLog struct {
	lk      sync.RWMutex
	entries []Notification
}

func NewNotificationLog() *NotificationLog {
	return &NotificationLog{}
}

func (l *NotificationLog) Notify(_ context.Context, notification Notification) error {
	l.lk.Lock()
	defer l.lk.Unlock()

	l.entries = append(l.entries, notification)
	return nil
}

func (l *NotificationLog) Notifications() []Notification {
	l.lk.RLock()
	defer l.lk.RUnlock()

	entries := make([]Notification, len(l.entries))
	copy(entries, l.entries)

	return entries
}

func (l *NotificationLog) Len() int {
	l.lk.RLock()
	defer l.lk.RUnlock()

	return len(l.entries)
}

type LoggingNotifier struct {
	log *zerolog.Logger
}

func NewLoggingNotifier(logger *zerolog.Logger) *LoggingNotifier {
	if logger == nil {
		logger = &log.Logger
	}

	return &LoggingNotifier{log: logger}
}

func (n *LoggingNotifier) Notify(_ context.Context, notification Notification) error {
	n.log.Info().
		Str("source", notification.Source.String()).
		Str("revision", notification.Revision.String()).
		Str("type", notification.EventType.String()).
		RawJSON("data", notification.Data.Data).
		Msg("notification")

	return nil
}

type fanout []Notifier

// Notifiers delivers to every notifier in turn and reports the first failure.
func Notifiers(notifiers ...Notifier) Notifier {
	return fanout(notifiers)
}

func (f fanout) Notify(ctx context.Context, notification Notification) error {
	var first error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, notification); err != nil && first == nil {
			first = err
		}
	}

	return first
}
