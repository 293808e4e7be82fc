package we

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
)

type CommandHandlers[T any] map[CommandName]CommandHandler[T]

// Dispatched is what a command wrote to the aggregate it was dispatched to.
type Dispatched struct {
	Revision Revision
	Events   []DomainEvent
}

func (d Dispatched) Published() bool {
	return len(d.Events) > 0
}

type Dispatcher[T any] interface {
	Dispatch(ctx context.Context, entity Entity[T], command Command) (Dispatched, error)
}

// RoutedDispatcher hands each command to the handler registered under its name.
type RoutedDispatcher[T any] struct {
	Publish  EventPublisher
	Handlers CommandHandlers[T]
}

func (d *RoutedDispatcher[T]) Dispatch(ctx context.Context, entity Entity[T], command Command) (Dispatched, error) {
	name := CommandNameOf(command)

	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("dispatch %s", name))
	defer span.End()

	handler, ok := d.Handlers[name]
	if !ok || handler == nil {
		return Dispatched{}, CommandNotFound(name)
	}

	recorder := &recordingPublisher{publish: d.Publish, aggregate: entity.Aggregate}

	var err error
	if remote, ok := command.(RemoteCommand); ok {
		err = handler.HandleRemoteCommand(ctx, remote, entity, recorder.Publish)
	} else {
		err = handler.HandleCommand(ctx, command, entity, recorder.Publish)
	}

	return recorder.dispatched, err
}

func CommandNotFound(command CommandName) CommandNotFoundError {
	return CommandNotFoundError{Command: command}
}

type CommandNotFoundError struct {
	Command CommandName
}

func (e CommandNotFoundError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Command)
}

// recordingPublisher keeps the events a handler commits to its own aggregate
// along with the revision the last of them was stored at.
type recordingPublisher struct {
	publish    EventPublisher
	aggregate  AggregateId
	dispatched Dispatched
}

func (p *recordingPublisher) Publish(ctx context.Context, id AggregateId, options PublishOptions, events ...DomainEvent) (Revision, error) {
	revision, err := p.publish(ctx, id, options, events...)
	if err != nil || id != p.aggregate || len(events) == 0 {
		return revision, err
	}

	p.dispatched.Revision = revision
	p.dispatched.Events = append(p.dispatched.Events, events...)

	return revision, nil
}
