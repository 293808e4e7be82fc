package we

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

type Renderer[T any] struct {
	Reducers Reducers[T]
}

func (r *Renderer[T]) Render(ctx context.Context, aggregate Aggregate) (Entity[T], error) {
	var state T

	_, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("render %s", NameOf(state)))
	defer span.End()

	for i := range aggregate.Events {
		event := &aggregate.Events[i]

		reducer := r.Reducers[event.EventType]
		if reducer == nil {
			continue
		}

		if err := reducer.Reduce(&state, event); err != nil {
			return Entity[T]{}, errors.Wrap(
				err,
				fmt.Sprintf("failed to process update with %s", event.EventType),
			)
		}
	}

	return Entity[T]{
		Aggregate: aggregate.Id,
		Revision:  aggregate.Revision,
		Type:      EntityTypeOf(state),
		State:     &state,
	}, nil
}

// Advance applies events committed at revision to a copy of entity's state
// without reading them back from the store.
func (r *Renderer[T]) Advance(ctx context.Context, entity Entity[T], revision Revision, events ...DomainEvent) (Entity[T], error) {
	var state T
	if entity.State != nil {
		state = *entity.State
	}

	_, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("advance %s", NameOf(state)))
	defer span.End()

	for _, event := range events {
		eventType := EventTypeOf(event)
		reducer := r.Reducers[eventType]
		if reducer == nil {
			continue
		}

		data, err := MarshalToData(event)
		if err != nil {
			return Entity[T]{}, err
		}

		recorded := RecordedEvent{AggregateId: entity.Aggregate, Revision: revision, EventType: eventType, Data: data}
		if err := reducer.Reduce(&state, &recorded); err != nil {
			return Entity[T]{}, errors.Wrap(err, fmt.Sprintf("failed to process update with %s", eventType))
		}
	}

	return Entity[T]{
		Aggregate: entity.Aggregate,
		Revision:  revision,
		Type:      EntityTypeOf(state),
		State:     &state,
	}, nil
}
