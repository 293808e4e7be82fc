package we

import (
	"fmt"

	"github.com/pkg/errors"
)

var BadOrigin = errors.New("bad-origin")

func UnexpectedCommand(command Command) error {
	return errors.New(fmt.Sprintf("unexpected command %s", CommandNameOf(command)))
}

type InvalidPayloadError struct {
	Command CommandName
	Cause   error
}

func InvalidPayload(command CommandName, cause error) *InvalidPayloadError {
	return &InvalidPayloadError{Command: command, Cause: cause}
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload for %s: %v", e.Command, e.Cause)
}

func (e *InvalidPayloadError) Unwrap() error {
	return e.Cause
}

type UnknownAggregateError struct {
	Aggregate AggregateId
}

func UnknownAggregate(id AggregateId) UnknownAggregateError {
	return UnknownAggregateError{Aggregate: id}
}

func (e UnknownAggregateError) Error() string {
	return fmt.Sprintf("unknown aggregate: %s", e.Aggregate.Encode())
}

// ModuleError is a domain rejection raised by a module's command handlers.
// Instances are compared by identity, so modules declare them once as package
// level values.
type ModuleError struct {
	Module string
	Name   string
}

func NewModuleError(module string, name string) *ModuleError {
	return &ModuleError{Module: module, Name: name}
}

func (e *ModuleError) Error() string {
	return e.Module + ":" + e.Name
}
