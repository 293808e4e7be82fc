package esdbs

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/EventStore/EventStore-Client-Go/esdb"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-ledger-go/we"
)

type EventStoreOption func(*ESDBEventStore)

const defaultPageSize = 97

func PageSize(size int) EventStoreOption {
	return func(es *ESDBEventStore) {
		if size <= 0 {
			size = defaultPageSize
		}

		es.pageSize = size
	}
}

// ESDBEventStore maps each aggregate onto an EventStoreDB stream. The stream's
// own expected version check guards concurrent publishes.
type ESDBEventStore struct {
	db       *esdb.Client
	pageSize int
}

func NewEventStore(client *esdb.Client, options ...EventStoreOption) *ESDBEventStore {
	store := &ESDBEventStore{db: client, pageSize: defaultPageSize}

	for _, option := range options {
		option(store)
	}

	return store
}

// revisionOf maps a stream event number onto a fixed width hex revision. Event
// numbers start at zero, so the revision is offset by one to stay clear of the
// initial revision.
func revisionOf(eventNumber uint64) we.Revision {
	return we.Revision(fmt.Sprintf("%026x", eventNumber+1))
}

// expectedVersion translates an expected revision into the stream's terms. A
// revision this store could not have produced can never be current.
func expectedVersion(revision we.Revision) (esdb.ExpectedRevision, error) {
	switch revision {
	case "":
		return esdb.Any{}, nil
	case we.InitialRevision:
		return esdb.NoStream{}, nil
	}

	number, ok := eventNumberOf(revision)
	if !ok {
		return nil, we.RevisionConflict
	}

	return esdb.Revision(number), nil
}

func eventNumberOf(revision we.Revision) (uint64, bool) {
	if len(revision) != len(we.InitialRevision) {
		return 0, false
	}

	number, err := strconv.ParseUint(revision.String(), 16, 64)
	if err != nil || number == 0 {
		return 0, false
	}

	return number - 1, true
}

type eventMetadata struct {
	CorrelationId we.CorrelationID `json:"$correlationId,omitempty"`
	CausationId   we.EventID       `json:"$causationId,omitempty"`
}

func (es *ESDBEventStore) Publish(ctx context.Context, aggregateId we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	if len(events) == 0 {
		return "", we.NoEvents
	}

	expected, err := expectedVersion(options.ExpectedRevision)
	if err != nil {
		return "", err
	}

	var metadata []byte
	if options.CorrelationId != "" || options.CausationId != "" {
		metadata, err = json.Marshal(eventMetadata{CorrelationId: options.CorrelationId, CausationId: options.CausationId})
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal metadata")
		}
	}

	proposed := make([]esdb.EventData, len(events))
	for i, event := range events {
		data, err := we.MarshalToData(event)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal event")
		}

		proposed[i] = esdb.EventData{
			ContentType: esdb.JsonContentType,
			EventType:   we.EventTypeOf(event).String(),
			Data:        data.Data,
			Metadata:    metadata,
		}
	}

	stream := aggregateId.Encode().String()
	result, err := es.db.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{ExpectedRevision: expected}, proposed...)
	if errors.Is(err, esdb.ErrWrongExpectedStreamRevision) {
		return "", we.RevisionConflict
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to append to %s", stream)
	}

	return revisionOf(result.NextExpectedVersion), nil
}

func (es *ESDBEventStore) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	var events []we.RecordedEvent

	var from esdb.StreamPosition = esdb.Start{}
	for {
		page, err := es.page(ctx, id, from)
		if err != nil {
			return we.Aggregate{}, err
		}

		events = append(events, page...)
		if len(page) < es.pageSize {
			break
		}

		last, ok := eventNumberOf(page[len(page)-1].Revision)
		if !ok {
			return we.Aggregate{}, errors.Errorf("unexpected revision %s", page[len(page)-1].Revision)
		}
		from = esdb.Revision(last + 1)
	}

	return we.Aggregate{Id: id, Events: events, Revision: we.RevisionOf(events)}, nil
}

// page reads up to pageSize events of the aggregate's stream starting at from.
// A stream that does not exist reads as empty.
func (es *ESDBEventStore) page(ctx context.Context, id we.AggregateId, from esdb.StreamPosition) ([]we.RecordedEvent, error) {
	stream, err := es.db.ReadStream(ctx, id.Encode().String(), esdb.ReadStreamOptions{From: from}, uint64(es.pageSize))
	if errors.Is(err, esdb.ErrStreamNotFound) || errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stream")
	}
	defer stream.Close()

	var events []we.RecordedEvent
	for {
		resolved, err := stream.Recv()
		switch {
		case errors.Is(err, io.EOF):
			return events, nil
		case errors.Is(err, esdb.ErrStreamNotFound):
			return nil, nil
		case err != nil:
			return nil, errors.Wrap(err, "failed to read event")
		}

		recorded, err := recordedEvent(id, resolved.OriginalEvent())
		if err != nil {
			return nil, err
		}
		events = append(events, recorded)
	}
}

func recordedEvent(id we.AggregateId, event *esdb.RecordedEvent) (we.RecordedEvent, error) {
	var metadata eventMetadata
	if len(event.UserMetadata) > 0 {
		if err := json.Unmarshal(event.UserMetadata, &metadata); err != nil {
			return we.RecordedEvent{}, errors.Wrapf(err, "failed to decode metadata of %s", event.EventID)
		}
	}

	return we.RecordedEvent{
		AggregateId: id,
		Revision:    revisionOf(event.EventNumber),
		EventID:     we.EventID(event.EventID.String()),
		EventType:   we.EventType(event.EventType),
		Timestamp:   we.TimestampFromTime(event.CreatedDate),
		Metadata: we.RecordedEventMetadata{
			CorrelationId: metadata.CorrelationId,
			CausationId:   metadata.CausationId,
		},
		Data: we.Data{Encoding: event.ContentType, Data: event.Data},
	}, nil
}
