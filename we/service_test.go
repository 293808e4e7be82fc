package we_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-ledger-go/stores/memory"
	"github.com/weegigs/wee-ledger-go/we"
)

type tally struct {
	Count int `json:"count"`
}

type Tallied struct {
	By int `json:"by"`
}

type Tally struct {
	By int `json:"by"`
}

type Peek struct{}

func reducers() we.Reducers[tally] {
	var tallied we.ReducerFunction[tally, Tallied] = func(state *tally, evt *Tallied) error {
		state.Count += evt.By
		return nil
	}

	return we.Reducers[tally]{we.EventTypeOf(Tallied{}): tallied}
}

func handlers() we.CommandHandlers[tally] {
	var count we.CommandHandlerFunction[tally, Tally] = func(ctx context.Context, cmd Tally, state we.Entity[tally], publish we.EventPublisher) error {
		_, err := publish(ctx, state.Aggregate, we.Options(we.WithExpectedRevision(state.Revision)), Tallied{By: cmd.By})
		return err
	}

	var peek we.CommandHandlerFunction[tally, Peek] = func(ctx context.Context, cmd Peek, state we.Entity[tally], publish we.EventPublisher) error {
		return nil
	}

	return we.CommandHandlers[tally]{
		we.CommandNameOf(Tally{}): count,
		we.CommandNameOf(Peek{}):  peek,
	}
}

// conflicted loses the first n publishes to a phantom writer.
type conflicted struct {
	we.EventStore
	lk sync.Mutex
	n  int
}

func (s *conflicted) Publish(ctx context.Context, id we.AggregateId, options we.PublishOptions, events ...we.DomainEvent) (we.Revision, error) {
	s.lk.Lock()
	if s.n > 0 {
		s.n--
		s.lk.Unlock()
		return "", we.RevisionConflict
	}
	s.lk.Unlock()

	return s.EventStore.Publish(ctx, id, options, events...)
}

// unreadable fails the given load call, counting from one.
type unreadable struct {
	we.EventStore
	lk    sync.Mutex
	loads int
	fail  int
}

func (s *unreadable) Load(ctx context.Context, id we.AggregateId) (we.Aggregate, error) {
	s.lk.Lock()
	s.loads++
	failing := s.loads == s.fail
	s.lk.Unlock()

	if failing {
		return we.Aggregate{}, errors.New("transient read failure")
	}

	return s.EventStore.Load(ctx, id)
}

func service(store we.EventStore, options ...we.ServiceOption) we.EntityService[tally] {
	dispatcher := &we.RoutedDispatcher[tally]{Handlers: handlers(), Publish: store.Publish}
	options = append([]we.ServiceOption{we.WithRetryDelay(time.Microsecond)}, options...)

	return we.NewEntityService[tally](we.NewEntityLoader[tally](store, reducers()), dispatcher, options...)
}

var id = we.AggregateId{Type: "tally", Key: "one"}

func TestEntityService(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the zero state", func(t *testing.T) {
		entity, err := service(memory.NewEventStore()).Load(ctx, id)
		require.NoError(t, err)

		assert.False(t, entity.Initialized())
		assert.Equal(t, tally{}, *entity.State)
	})

	t.Run("returns the state after the command", func(t *testing.T) {
		s := service(memory.NewEventStore())

		_, err := s.Execute(ctx, id, Tally{By: 2})
		require.NoError(t, err)
		entity, err := s.Execute(ctx, id, Tally{By: 3})
		require.NoError(t, err)

		assert.True(t, entity.Initialized())
		assert.Equal(t, 5, entity.State.Count)
	})

	t.Run("commands that publish nothing return the current state", func(t *testing.T) {
		store := memory.NewEventStore()
		s := service(store)

		before, err := s.Execute(ctx, id, Tally{By: 1})
		require.NoError(t, err)

		after, err := s.Execute(ctx, id, Peek{})
		require.NoError(t, err)
		assert.Equal(t, before.Revision, after.Revision)
	})

	t.Run("retries revision conflicts", func(t *testing.T) {
		store := &conflicted{EventStore: memory.NewEventStore(), n: 3}

		entity, err := service(store).Execute(ctx, id, Tally{By: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, entity.State.Count)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		store := &conflicted{EventStore: memory.NewEventStore(), n: 5}

		_, err := service(store, we.WithConflictRetries(3)).Execute(ctx, id, Tally{By: 1})
		assert.ErrorIs(t, err, we.RevisionConflict)

		aggregate, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, aggregate.Events)
	})

	t.Run("a failed read after the write still succeeds", func(t *testing.T) {
		store := &unreadable{EventStore: memory.NewEventStore(), fail: 4}
		s := service(store)

		first, err := s.Execute(ctx, id, Tally{By: 2})
		require.NoError(t, err)

		entity, err := s.Execute(ctx, id, Tally{By: 3})
		require.NoError(t, err)
		assert.Equal(t, 5, entity.State.Count)
		assert.NotEqual(t, first.Revision, entity.Revision)

		stored, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, stored.Revision, entity.Revision)
		assert.Equal(t, 5, stored.State.Count)
	})

	t.Run("does not retry other failures", func(t *testing.T) {
		rejected := errors.New("rejected")
		calls := 0

		var failing we.CommandHandlerFunction[tally, Tally] = func(ctx context.Context, cmd Tally, state we.Entity[tally], publish we.EventPublisher) error {
			calls++
			return rejected
		}

		store := memory.NewEventStore()
		dispatcher := &we.RoutedDispatcher[tally]{Handlers: we.CommandHandlers[tally]{we.CommandNameOf(Tally{}): failing}, Publish: store.Publish}
		s := we.NewEntityService[tally](we.NewEntityLoader[tally](store, reducers()), dispatcher)

		_, err := s.Execute(ctx, id, Tally{By: 1})
		assert.ErrorIs(t, err, rejected)
		assert.Equal(t, 1, calls)
	})

	t.Run("unknown commands are not found", func(t *testing.T) {
		_, err := service(memory.NewEventStore()).Execute(ctx, id, struct{ Other int }{})

		var notFound we.CommandNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("concurrent commands are serialized", func(t *testing.T) {
		s := service(memory.NewEventStore(), we.WithConflictRetries(1000))

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Execute(ctx, id, Tally{By: 1})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		entity, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 16, entity.State.Count)
	})
}

func TestSingleton(t *testing.T) {
	ctx := context.Background()
	s := we.Singleton[tally](service(memory.NewEventStore()), id)
	other := we.AggregateId{Type: "tally", Key: "two"}

	_, err := s.Execute(ctx, id, Tally{By: 1})
	require.NoError(t, err)

	_, err = s.Load(ctx, other)
	var unknown we.UnknownAggregateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, other, unknown.Aggregate)

	_, err = s.Execute(ctx, other, Tally{By: 1})
	assert.ErrorAs(t, err, &unknown)
}

func TestServiceMetrics(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	store := &conflicted{EventStore: memory.NewEventStore(), n: 2}
	s := service(store, we.WithMetrics(we.NewMetrics(registry)))

	_, err := s.Execute(ctx, id, Tally{By: 1})
	require.NoError(t, err)

	_, err = s.Execute(ctx, id, Peek{})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "we_commands_total", "we_command_retries_total")
	require.NoError(t, err)
	// two command series plus one retry series
	assert.Equal(t, 3, count)
}

func TestRetriesAreCountedOnlyWhenRerun(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := &conflicted{EventStore: memory.NewEventStore(), n: 5}
	s := service(store, we.WithConflictRetries(3), we.WithMetrics(we.NewMetrics(registry)))

	_, err := s.Execute(context.Background(), id, Tally{By: 1})
	require.ErrorIs(t, err, we.RevisionConflict)

	expected := fmt.Sprintf(`
# HELP we_command_retries_total Commands re-run after a revision conflict.
# TYPE we_command_retries_total counter
we_command_retries_total{command="%s"} 2
`, we.CommandNameOf(Tally{}))

	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "we_command_retries_total"))
}
