package jetstream

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-ledger-go/we"
)

type EventStoreOption func(*EventStore)

// WithSubjectPrefix sets the subject prefix change sets are published under.
// The stream captures <prefix>.>.
func WithSubjectPrefix(prefix string) EventStoreOption {
	return func(store *EventStore) {
		store.prefix = prefix
	}
}

// EventStore keeps each publish as one change-set message on the aggregate's
// subject. A publish reads the subject's head, checks the expected revision
// against it and then appends conditional on the head's stream sequence.
type EventStore struct {
	name     string
	prefix   string
	manager  nats.JetStreamManager
	stream   nats.JetStream
	revision *we.RevisionGenerator
}

// NewEventStore binds to the stream called name, creating it when it does not
// exist yet.
func NewEventStore(name string, connection *nats.Conn, options ...EventStoreOption) (*EventStore, error) {
	js, err := connection.JetStream()
	if err != nil {
		return nil, err
	}

	store := &EventStore{
		name:     name,
		prefix:   "change-set",
		manager:  js,
		stream:   js,
		revision: we.NewRevisionGenerator(),
	}

	for _, option := range options {
		option(store)
	}

	if err := store.ensureStream(); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to prepare stream %s", name)
	}

	return store, nil
}

func (es *EventStore) ensureStream() error {
	_, err := es.manager.StreamInfo(es.name)
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}

	_, err = es.manager.AddStream(&nats.StreamConfig{
		Name:        es.name,
		Description: "accumulator change sets",
		Subjects:    []string{es.prefix + ".>"},
	})

	return err
}

func (es *EventStore) subject(id we.AggregateId) string {
	return es.prefix + "." + id.Encode().String()
}

type changeSet struct {
	Timestamp we.Timestamp       `json:"timestamp"`
	Events    []changeSetElement `json:"events"`
}

type changeSetElement struct {
	Revision we.Revision              `json:"revision"`
	Type     we.EventType             `json:"type"`
	Data     we.Data                  `json:"data"`
	Metadata we.RecordedEventMetadata `json:"metadata"`
}

func (cs *changeSet) recorded(id we.AggregateId) []we.RecordedEvent {
	events := make([]we.RecordedEvent, len(cs.Events))
	for i, element := range cs.Events {
		events[i] = we.RecordedEvent{
			AggregateId: id,
			Revision:    element.Revision,
			EventID:     we.EventID(element.Revision),
			EventType:   element.Type,
			Timestamp:   cs.Timestamp,
			Metadata:    element.Metadata,
			Data:        element.Data,
		}
	}

	return events
}

// head is the last change set on a subject and the stream sequence it was
// stored at. A subject without messages has sequence 0.
type head struct {
	sequence uint64
	revision we.Revision
}

func (es *EventStore) head(ctx context.Context, subject string) (head, error) {
	msg, err := es.manager.GetLastMsg(es.name, subject, nats.Context(ctx))
	if errors.Is(err, nats.ErrMsgNotFound) {
		return head{revision: we.InitialRevision}, nil
	}
	if err != nil {
		return head{}, pkgerrors.Wrapf(err, "failed to read head of %s", subject)
	}

	var last changeSet
	if err := json.Unmarshal(msg.Data, &last); err != nil {
		return head{}, pkgerrors.Wrapf(err, "failed to decode change set %d", msg.Sequence)
	}

	return head{sequence: msg.Sequence, revision: we.RevisionOf(last.recorded(we.AggregateId{}))}, nil
}

func (es *EventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	if len(events) == 0 {
		return "", we.NoEvents
	}

	elements := make([]changeSetElement, len(events))
	for i, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return "", err
		}
		elements[i] = changeSetElement{Type: we.EventTypeOf(event), Data: data, Metadata: options.RecordedEventMetadata}
	}

	subject := es.subject(aggregateId)

	var revision we.Revision
	err := retry.Do(
		func() error {
			current, err := es.head(ctx, subject)
			if err != nil {
				return err
			}

			if options.ExpectedRevision != "" && options.ExpectedRevision != current.revision {
				return we.RevisionConflict
			}

			now := time.Now()
			revision = current.revision
			for i := range elements {
				revision = es.revision.After(now, revision)
				elements[i].Revision = revision
			}

			data, err := json.Marshal(changeSet{Timestamp: we.TimestampFromTime(now), Events: elements})
			if err != nil {
				return err
			}

			_, err = es.stream.Publish(subject, data, nats.Context(ctx), nats.ExpectLastSequencePerSubject(current.sequence))
			var api *nats.APIError
			if errors.As(err, &api) && api.ErrorCode == nats.JSErrCodeStreamWrongLastSequence {
				return we.RevisionConflict
			}

			return err
		},
		retry.Context(ctx),
		retry.Delay(time.Millisecond),
		retry.RetryIf(
			func(err error) bool {
				return errors.Is(err, we.RevisionConflict) && options.ExpectedRevision == ""
			},
		),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	return revision, nil
}

func (es *EventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	events, err := es.replay(ctx, id)
	if err != nil {
		return we.Aggregate{}, err
	}

	return we.Aggregate{
		Id:       id,
		Events:   events,
		Revision: we.RevisionOf(events),
	}, nil
}

// replay reads every change set on the aggregate's subject up to the head seen
// when the replay started.
func (es *EventStore) replay(ctx context.Context, id we.AggregateId) ([]we.RecordedEvent, error) {
	subject := es.subject(id)

	current, err := es.head(ctx, subject)
	if err != nil || current.sequence == 0 {
		return nil, err
	}

	subscription, err := es.stream.SubscribeSync(subject, nats.DeliverAll(), nats.OrderedConsumer())
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to replay %s", subject)
	}
	defer func() {
		if err := subscription.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("replay subscription did not unsubscribe cleanly")
		}
	}()

	var events []we.RecordedEvent
	for {
		msg, err := subscription.NextMsgWithContext(ctx)
		if err != nil {
			return nil, err
		}

		metadata, err := msg.Metadata()
		if err != nil {
			return nil, err
		}

		var cs changeSet
		if err := json.Unmarshal(msg.Data, &cs); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to decode change set %d", metadata.Sequence.Stream)
		}
		events = append(events, cs.recorded(id)...)

		if metadata.Sequence.Stream >= current.sequence {
			return events, nil
		}
	}
}
