package we

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)

// EventStoreValidationSuite checks the behaviour every EventStore shares:
// append-only change sets, unique ascending revisions and exact expected
// revision checks.
type EventStoreValidationSuite struct {
	store EventStore
	ctx   context.Context
	faker faker.Faker
}

func NewEventStoreValidationSuite(ctx context.Context, store EventStore) *EventStoreValidationSuite {
	return &EventStoreValidationSuite{store: store, ctx: ctx, faker: faker.New()}
}

type StoreValidationEvent struct {
	TestStringValue string `json:"test_string_value"`
	TestIntValue    int    `json:"test_int_value"`
}

func (s *EventStoreValidationSuite) Run(t *testing.T) {
	cases := []struct {
		name string
		test func(t *testing.T, id AggregateId)
	}{
		{"unknown aggregates load empty", s.loadsEmpty},
		{"publish returns the loaded revision", s.publishReturnsRevision},
		{"change sets keep their order", s.keepsChangeSetOrder},
		{"revisions ascend across publishes", s.revisionsAscend},
		{"initial revision conflicts once written", s.initialRevisionConflicts},
		{"stale revisions conflict", s.staleRevisionConflicts},
		{"current revision is accepted", s.currentRevisionAccepted},
		{"records causation", s.recordsCausation},
		{"rejects an empty publish", s.rejectsEmptyPublish},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			c.test(t, s.MakeTestAggregateId())
		})
	}
}

func (s *EventStoreValidationSuite) MakeTestAggregateId() AggregateId {
	return AggregateId{
		Type: "go-test",
		Key:  ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
	}
}

func (s *EventStoreValidationSuite) MakeTestEvent() StoreValidationEvent {
	return StoreValidationEvent{
		TestStringValue: s.faker.Lorem().Sentence(10),
		TestIntValue:    s.faker.Int(),
	}
}

func (s *EventStoreValidationSuite) MakeTestEvents(count int) []DomainEvent {
	events := make([]DomainEvent, count)
	for i := range events {
		events[i] = s.MakeTestEvent()
	}

	return events
}

func (s *EventStoreValidationSuite) load(t *testing.T, id AggregateId) Aggregate {
	aggregate, err := s.store.Load(s.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, aggregate.Id)

	return aggregate
}

func (s *EventStoreValidationSuite) loadsEmpty(t *testing.T, id AggregateId) {
	aggregate := s.load(t, id)

	assert.Empty(t, aggregate.Events)
	assert.Equal(t, InitialRevision, aggregate.Revision)
}

func (s *EventStoreValidationSuite) publishReturnsRevision(t *testing.T, id AggregateId) {
	event := s.MakeTestEvent()

	revision, err := s.store.Publish(s.ctx, id, Options(), event)
	require.NoError(t, err)
	assert.Greater(t, revision, InitialRevision)

	aggregate := s.load(t, id)
	require.Len(t, aggregate.Events, 1)
	assert.Equal(t, revision, aggregate.Revision)

	recorded := aggregate.Events[0]
	assert.Equal(t, revision, recorded.Revision)
	assert.Equal(t, EventTypeOf(event), recorded.EventType)
	assert.NotEmpty(t, recorded.EventID)

	var decoded StoreValidationEvent
	require.NoError(t, UnmarshalFromData(recorded.Data, &decoded))
	assert.Equal(t, event, decoded)
}

func (s *EventStoreValidationSuite) keepsChangeSetOrder(t *testing.T, id AggregateId) {
	events := s.MakeTestEvents(17)

	revision, err := s.store.Publish(s.ctx, id, Options(), events...)
	require.NoError(t, err)

	aggregate := s.load(t, id)
	require.Len(t, aggregate.Events, len(events))
	assert.Equal(t, revision, aggregate.Revision)

	for i, recorded := range aggregate.Events {
		var decoded StoreValidationEvent
		require.NoError(t, UnmarshalFromData(recorded.Data, &decoded))
		assert.Equal(t, events[i], decoded)
	}

	assertAscending(t, aggregate.Events)
}

func (s *EventStoreValidationSuite) revisionsAscend(t *testing.T, id AggregateId) {
	var last Revision = InitialRevision
	for i := 0; i < 4; i++ {
		revision, err := s.store.Publish(s.ctx, id, Options(WithExpectedRevision(last)), s.MakeTestEvents(i+1)...)
		require.NoError(t, err)
		require.Greater(t, revision, last)
		last = revision
	}

	aggregate := s.load(t, id)
	assert.Len(t, aggregate.Events, 10)
	assert.Equal(t, last, aggregate.Revision)

	assertAscending(t, aggregate.Events)
}

func (s *EventStoreValidationSuite) initialRevisionConflicts(t *testing.T, id AggregateId) {
	_, err := s.store.Publish(s.ctx, id, Options(WithExpectedRevision(InitialRevision)), s.MakeTestEvent())
	require.NoError(t, err)

	_, err = s.store.Publish(s.ctx, id, Options(WithExpectedRevision(InitialRevision)), s.MakeTestEvent())
	assert.ErrorIs(t, err, RevisionConflict)

	assert.Len(t, s.load(t, id).Events, 1)
}

func (s *EventStoreValidationSuite) staleRevisionConflicts(t *testing.T, id AggregateId) {
	first, err := s.store.Publish(s.ctx, id, Options(), s.MakeTestEvent())
	require.NoError(t, err)

	_, err = s.store.Publish(s.ctx, id, Options(WithExpectedRevision(first)), s.MakeTestEvent())
	require.NoError(t, err)

	_, err = s.store.Publish(s.ctx, id, Options(WithExpectedRevision(first)), s.MakeTestEvent())
	assert.ErrorIs(t, err, RevisionConflict)

	assert.Len(t, s.load(t, id).Events, 2)
}

func (s *EventStoreValidationSuite) currentRevisionAccepted(t *testing.T, id AggregateId) {
	_, err := s.store.Publish(s.ctx, id, Options(), s.MakeTestEvents(3)...)
	require.NoError(t, err)

	current := s.load(t, id).Revision

	revision, err := s.store.Publish(s.ctx, id, Options(WithExpectedRevision(current)), s.MakeTestEvent())
	require.NoError(t, err)
	assert.Equal(t, revision, s.load(t, id).Revision)
}

func (s *EventStoreValidationSuite) recordsCausation(t *testing.T, id AggregateId) {
	_, err := s.store.Publish(s.ctx, id, Options(), s.MakeTestEvent())
	require.NoError(t, err)

	cause := s.load(t, id).Events[0]
	correlation := CorrelationID("event/" + cause.EventID.String())

	_, err = s.store.Publish(s.ctx, id, Options(WithCausationId(correlation, cause.EventID)), s.MakeTestEvent())
	require.NoError(t, err)

	events := s.load(t, id).Events
	require.Len(t, events, 2)
	assert.Equal(t, correlation, events[1].Metadata.CorrelationId)
	assert.Equal(t, cause.EventID, events[1].Metadata.CausationId)
}

func (s *EventStoreValidationSuite) rejectsEmptyPublish(t *testing.T, id AggregateId) {
	_, err := s.store.Publish(s.ctx, id, Options())
	assert.ErrorIs(t, err, NoEvents)

	assert.Empty(t, s.load(t, id).Events)
}

func assertAscending(t *testing.T, events []RecordedEvent) {
	ids := map[EventID]bool{}
	for i, event := range events {
		assert.False(t, ids[event.EventID], "event id %s repeated", event.EventID)
		ids[event.EventID] = true

		if i > 0 {
			assert.Greater(t, event.Revision, events[i-1].Revision)
		}
	}
}
