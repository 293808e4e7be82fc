package memory

import (
	"context"
	"sync"
	"time"

	"github.com/weegigs/wee-ledger-go/we"
)

type EventStoreOption func(*EventStore)

type Clock func() time.Time

func WithClock(clock Clock) EventStoreOption {
	return func(store *EventStore) {
		store.clock = clock
	}
}

func NewEventStore(options ...EventStoreOption) *EventStore {
	store := &EventStore{
		streams:  make(map[we.EncodedAggregateId][]we.RecordedEvent),
		revision: we.NewRevisionGenerator(),
		clock:    time.Now,
	}

	for _, option := range options {
		option(store)
	}

	return store
}

// EventStore keeps aggregates in process memory. A publish appends its whole
// change set under a single lock, so readers see all of it or none of it.
type EventStore struct {
	lk       sync.RWMutex
	streams  map[we.EncodedAggregateId][]we.RecordedEvent
	revision *we.RevisionGenerator
	clock    Clock
}

func (ms *EventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return we.Aggregate{}, err
	}

	ms.lk.RLock()
	defer ms.lk.RUnlock()

	stored := ms.streams[id.Encode()]
	events := make([]we.RecordedEvent, len(stored))
	copy(events, stored)

	return we.Aggregate{
		Id:       id,
		Events:   events,
		Revision: we.RevisionOf(events),
	}, nil
}

func (ms *EventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	if len(events) == 0 {
		return "", we.NoEvents
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	encoded := make([]we.Data, len(events))
	for index, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return "", err
		}
		encoded[index] = data
	}

	ms.lk.Lock()
	defer ms.lk.Unlock()

	key := aggregateId.Encode()
	current := we.RevisionOf(ms.streams[key])
	if options.ExpectedRevision != "" && options.ExpectedRevision != current {
		return "", we.RevisionConflict
	}

	now := ms.clock()
	timestamp := we.TimestampFromTime(now)

	recorded := make([]we.RecordedEvent, len(events))
	for index, event := range events {
		revision := ms.revision.After(now, current)
		current = revision
		recorded[index] = we.RecordedEvent{
			AggregateId: aggregateId,
			Revision:    revision,
			EventID:     we.EventID(revision),
			EventType:   we.EventTypeOf(event),
			Timestamp:   timestamp,
			Metadata:    options.RecordedEventMetadata,
			Data:        encoded[index],
		}
	}

	ms.streams[key] = append(ms.streams[key], recorded...)

	return recorded[len(recorded)-1].Revision, nil
}
