package we

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

type EntityService[T any] interface {
	Load(ctx context.Context, id AggregateId) (Entity[T], error)
	Execute(ctx context.Context, id AggregateId, command Command) (Entity[T], error)
}

type ServiceOption func(service *serviceOptions)

type serviceOptions struct {
	attempts uint
	delay    time.Duration
	metrics  *Metrics
}

// WithConflictRetries bounds how many times a command is re-run when its
// write loses a revision race.
func WithConflictRetries(attempts uint) ServiceOption {
	return func(options *serviceOptions) {
		if attempts == 0 {
			attempts = 1
		}
		options.attempts = attempts
	}
}

func WithRetryDelay(delay time.Duration) ServiceOption {
	return func(options *serviceOptions) {
		if delay <= 0 {
			delay = time.Microsecond
		}
		options.delay = delay
	}
}

func WithMetrics(metrics *Metrics) ServiceOption {
	return func(options *serviceOptions) {
		options.metrics = metrics
	}
}

func NewEntityService[T any](loader *EntityLoader[T], dispatcher Dispatcher[T], options ...ServiceOption) *entityService[T] {
	opts := serviceOptions{attempts: 10, delay: 5 * time.Millisecond}
	for _, option := range options {
		option(&opts)
	}

	return &entityService[T]{
		loader:     loader,
		dispatcher: dispatcher,
		options:    opts,
	}
}

type entityService[T any] struct {
	loader     *EntityLoader[T]
	dispatcher Dispatcher[T]
	options    serviceOptions
}

const tracerName = "events-service"

func (s *entityService[T]) Load(ctx context.Context, id AggregateId) (Entity[T], error) {
	return s.loader.Load(ctx, id)
}

// Execute runs command against the current state of id. A handler that loses
// a revision race has written nothing, so the whole load and dispatch is
// repeated against the newer state.
func (s *entityService[T]) Execute(ctx context.Context, id AggregateId, command Command) (Entity[T], error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "execute command")
	defer span.End()

	name := CommandNameOf(command)

	var entity Entity[T]
	err := retry.Do(
		func() error {
			current, err := s.Load(ctx, id)
			if err != nil {
				return err
			}

			dispatched, err := s.dispatcher.Dispatch(ctx, current, command)
			if err != nil {
				return err
			}

			if !dispatched.Published() {
				entity = current
				return nil
			}

			entity = s.committed(ctx, current, dispatched)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.options.attempts),
		retry.Delay(s.options.delay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(s.options.delay),
		retry.RetryIf(
			func(err error) bool {
				return errors.Is(err, RevisionConflict)
			},
		),
		retry.OnRetry(
			func(n uint, _ error) {
				if n+1 < s.options.attempts {
					s.options.metrics.retried(name)
				}
			},
		),
		retry.LastErrorOnly(true),
	)

	s.options.metrics.observe(name, err)

	if err != nil {
		return Entity[T]{}, err
	}

	return entity, nil
}

// committed renders the entity after a successful write. The write is already
// visible, so a failed read back is logged and the state is advanced in memory
// instead of failing the command.
func (s *entityService[T]) committed(ctx context.Context, current Entity[T], dispatched Dispatched) Entity[T] {
	entity, err := s.Load(ctx, current.Aggregate)
	if err == nil {
		return entity
	}

	log.Warn().
		Err(err).
		Str("aggregate", current.Aggregate.String()).
		Str("revision", dispatched.Revision.String()).
		Msg("failed to reload entity after publish")

	advanced, err := s.loader.Renderer.Advance(ctx, current, dispatched.Revision, dispatched.Events...)
	if err != nil {
		log.Warn().Err(err).Str("aggregate", current.Aggregate.String()).Msg("failed to advance entity after publish")
		return current
	}

	return advanced
}

// Singleton restricts service to the single aggregate id.
func Singleton[T any](service EntityService[T], id AggregateId) EntityService[T] {
	return &singletonService[T]{service: service, id: id}
}

type singletonService[T any] struct {
	service EntityService[T]
	id      AggregateId
}

func (s *singletonService[T]) Load(ctx context.Context, id AggregateId) (Entity[T], error) {
	if id != s.id {
		return Entity[T]{}, UnknownAggregate(id)
	}

	return s.service.Load(ctx, id)
}

func (s *singletonService[T]) Execute(ctx context.Context, id AggregateId, command Command) (Entity[T], error) {
	if id != s.id {
		return Entity[T]{}, UnknownAggregate(id)
	}

	return s.service.Execute(ctx, id, command)
}
