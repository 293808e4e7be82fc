package accumulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/weegigs/wee-ledger-go/stores/memory"
	"github.com/weegigs/wee-ledger-go/we"
)

type fixture struct {
	store         *Store
	module        *Module
	notifications *we.NotificationLog
}

func newFixture(options ...we.ServiceOption) *fixture {
	events := memory.NewEventStore()
	notifications := we.NewNotificationLog()

	return &fixture{
		store:         NewStore(events),
		module:        NewModule(NewService(events, notifications, options...)),
		notifications: notifications,
	}
}

func as(who we.AccountID) context.Context {
	return we.WithOrigin(context.Background(), who)
}

func accumulation(count, increment uint64) Accumulation {
	return Accumulation{CurrentCount: uint128.From64(count), IncrementPerCall: uint128.From64(increment)}
}

func accumulated(t *testing.T, notifications []we.Notification) []Accumulated {
	t.Helper()

	events := make([]Accumulated, len(notifications))
	for i, notification := range notifications {
		require.Equal(t, AccumulatedEvent, notification.EventType)
		require.NoError(t, notification.Decode(&events[i]))
	}

	return events
}

func TestDefaultState(t *testing.T) {
	f := newFixture()

	stored, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(0, 0), stored)

	read, err := f.module.Accumulation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(0, 0), read)
}

func TestSetIncrement(t *testing.T) {
	t.Run("last write wins and the count is kept", func(t *testing.T) {
		f := newFixture()
		ctx := as("alice")
		require.NoError(t, f.store.Write(ctx, accumulation(11, 0)))

		for _, increment := range []uint64{3, 9, 4} {
			require.NoError(t, f.module.SetIncrement(ctx, uint128.From64(increment)))
		}

		stored, err := f.store.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, accumulation(11, 4), stored)
	})

	t.Run("accepts the largest increment", func(t *testing.T) {
		f := newFixture()

		require.NoError(t, f.module.SetIncrement(as("alice"), uint128.Max))

		stored, err := f.store.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint128.Max, stored.IncrementPerCall)
		assert.True(t, stored.CurrentCount.IsZero())
	})

	t.Run("never deposits a notification", func(t *testing.T) {
		f := newFixture()

		for _, increment := range []uint64{0, 1, 1 << 63} {
			require.NoError(t, f.module.SetIncrement(as("alice"), uint128.From64(increment)))
		}

		assert.Equal(t, 0, f.notifications.Len())
	})

	t.Run("requires a signed origin", func(t *testing.T) {
		f := newFixture()

		err := f.module.SetIncrement(context.Background(), uint128.From64(5))
		assert.ErrorIs(t, err, we.BadOrigin)

		entity, err := f.store.Load(context.Background())
		require.NoError(t, err)
		assert.False(t, entity.Initialized())
	})
}

func TestAccumulate(t *testing.T) {
	t.Run("adds the increment and deposits the new count", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.store.Write(context.Background(), accumulation(40, 2)))

		require.NoError(t, f.module.Accumulate(as("bob")))

		stored, err := f.store.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, accumulation(42, 2), stored)

		events := accumulated(t, f.notifications.Notifications())
		require.Len(t, events, 1)
		assert.Equal(t, Accumulated{NewCount: uint128.From64(42), Who: "bob"}, events[0])
	})

	t.Run("notification carries the committed revision", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.module.SetIncrement(as("bob"), uint128.From64(1)))
		require.NoError(t, f.module.Accumulate(as("bob")))

		entity, err := f.store.Load(context.Background())
		require.NoError(t, err)

		notifications := f.notifications.Notifications()
		require.Len(t, notifications, 1)
		assert.Equal(t, entity.Revision, notifications[0].Revision)
		assert.Equal(t, StorageKey, notifications[0].Source)
	})

	t.Run("a zero increment still writes and deposits", func(t *testing.T) {
		f := newFixture()

		require.NoError(t, f.module.Accumulate(as("carol")))

		entity, err := f.store.Load(context.Background())
		require.NoError(t, err)
		assert.True(t, entity.Initialized())
		assert.Equal(t, accumulation(0, 0), *entity.State)
		assert.Equal(t, 1, f.notifications.Len())
	})

	t.Run("reaches the maximum exactly", func(t *testing.T) {
		f := newFixture()
		start := Accumulation{CurrentCount: uint128.Max.Sub64(5), IncrementPerCall: uint128.From64(5)}
		require.NoError(t, f.store.Write(context.Background(), start))

		require.NoError(t, f.module.Accumulate(as("carol")))

		stored, err := f.store.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint128.Max, stored.CurrentCount)
	})

	t.Run("requires a signed origin", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.store.Write(context.Background(), accumulation(1, 1)))

		err := f.module.Accumulate(context.Background())
		assert.ErrorIs(t, err, we.BadOrigin)

		stored, err := f.store.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, accumulation(1, 1), stored)
		assert.Equal(t, 0, f.notifications.Len())
	})
}

func TestOverflowIsRejected(t *testing.T) {
	f := newFixture()
	start := Accumulation{CurrentCount: uint128.Max.Sub64(2), IncrementPerCall: uint128.From64(5)}
	require.NoError(t, f.store.Write(context.Background(), start))

	before, err := f.store.Load(context.Background())
	require.NoError(t, err)

	err = f.module.Accumulate(as("dave"))
	assert.ErrorIs(t, err, AccumulationOverflow)

	after, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, start, *after.State)
	assert.Equal(t, 0, f.notifications.Len())
}

func TestScenarios(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.module.SetIncrement(as("U0"), uint128.From64(5)))
	stored, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(0, 5), stored)

	require.NoError(t, f.module.Accumulate(as("U1")))
	stored, err = f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(5, 5), stored)

	require.NoError(t, f.module.Accumulate(as("U2")))
	stored, err = f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(10, 5), stored)

	assert.Equal(t, []Accumulated{
		{NewCount: uint128.From64(5), Who: "U1"},
		{NewCount: uint128.From64(10), Who: "U2"},
	}, accumulated(t, f.notifications.Notifications()))
}

func TestConcurrentAccumulate(t *testing.T) {
	f := newFixture(we.WithConflictRetries(1000), we.WithRetryDelay(time.Microsecond))
	require.NoError(t, f.module.SetIncrement(as("setup"), uint128.From64(1)))

	const callers, calls = 8, 10

	var wg sync.WaitGroup
	errs := make(chan error, callers*calls)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(who we.AccountID) {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				errs <- f.module.Accumulate(as(who))
			}
		}(we.AccountID(string(rune('a' + i))))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(callers*calls, 1), stored)

	seen := make(map[uint64]bool)
	for _, event := range accumulated(t, f.notifications.Notifications()) {
		seen[event.NewCount.Lo] = true
	}
	assert.Len(t, seen, callers*calls)
}

func TestRemoteCommands(t *testing.T) {
	service := NewService(memory.NewEventStore(), we.NewNotificationLog())

	entity, err := service.Execute(as("erin"), StorageKey, we.RemoteCommand{
		CommandName: SetIncrementCmd,
		Payload: we.Data{
			Encoding: we.JsonEncoding,
			Data:     []byte(`{"increment":"340282366920938463463374607431768211455"}`),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint128.Max, entity.State.IncrementPerCall)

	entity, err = service.Execute(as("erin"), StorageKey, we.RemoteCommand{
		CommandName: SetIncrementCmd,
		Payload:     we.Data{Encoding: we.JsonEncoding, Data: []byte(`{"increment":7}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint128.From64(7), entity.State.IncrementPerCall)

	entity, err = service.Execute(as("erin"), StorageKey, we.RemoteCommand{
		CommandName: AccumulateCmd,
		Payload:     we.Data{Encoding: we.JsonEncoding},
	})
	require.NoError(t, err)
	assert.Equal(t, accumulation(7, 7), *entity.State)

	_, err = service.Execute(as("erin"), StorageKey, we.RemoteCommand{
		CommandName: SetIncrementCmd,
		Payload:     we.Data{Encoding: we.JsonEncoding, Data: []byte(`{"increment":"-1"}`)},
	})
	var invalid *we.InvalidPayloadError
	assert.ErrorAs(t, err, &invalid)

	_, err = service.Execute(as("erin"), StorageKey, we.RemoteCommand{CommandName: "template-module:reset"})
	assert.ErrorAs(t, err, &we.CommandNotFoundError{})
}

func TestOnlyTheStorageKeyIsAddressable(t *testing.T) {
	service := NewService(memory.NewEventStore(), nil)

	_, err := service.Load(context.Background(), we.AggregateId{Type: ModuleName, Key: "other"})
	assert.ErrorAs(t, err, &we.UnknownAggregateError{})

	_, err = service.Execute(as("frank"), we.AggregateId{Type: ModuleName, Key: "other"}, Accumulate{})
	assert.ErrorAs(t, err, &we.UnknownAggregateError{})
}

// flakyReads fails every load after the first n.
type flakyReads struct {
	we.EventStore
	lk sync.Mutex
	n  int
}

func (s *flakyReads) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	if s.n == 0 {
		return we.Aggregate{}, errors.New("transient read failure")
	}
	s.n--

	return s.EventStore.Load(ctx, id)
}

func TestCommittedAccumulateSucceedsWhenTheReadBackFails(t *testing.T) {
	events := memory.NewEventStore()
	notifications := we.NewNotificationLog()

	require.NoError(t, NewStore(events).Write(context.Background(), accumulation(4, 3)))

	service := NewService(&flakyReads{EventStore: events, n: 1}, notifications)
	entity, err := service.Execute(as("gina"), StorageKey, Accumulate{})
	require.NoError(t, err)
	assert.Equal(t, accumulation(7, 3), *entity.State)

	stored, err := NewStore(events).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accumulation(7, 3), stored)
	assert.Equal(t, []Accumulated{{NewCount: uint128.From64(7), Who: "gina"}}, accumulated(t, notifications.Notifications()))
}
