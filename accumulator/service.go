package accumulator

import (
	"context"

	"lukechampine.com/uint128"

	"github.com/weegigs/wee-ledger-go/we"
)

type Service = we.EntityService[Accumulation]

// NewService routes the module's commands against store, depositing
// Accumulated notifications with notifier. Only StorageKey is addressable.
func NewService(store we.EventStore, notifier we.Notifier, options ...we.ServiceOption) Service {
	loader := Loader(store)
	dispatcher := we.RoutedDispatcher[Accumulation]{Handlers: CommandHandlers(notifier), Publish: store.Publish}

	return we.Singleton[Accumulation](we.NewEntityService[Accumulation](loader, &dispatcher, options...), StorageKey)
}

// Module is the typed surface of the accumulator. The caller is taken from
// ctx, see we.WithOrigin.
type Module struct {
	service Service
}

func NewModule(service Service) *Module {
	return &Module{service: service}
}

func (m *Module) SetIncrement(ctx context.Context, increment uint128.Uint128) error {
	_, err := m.service.Execute(ctx, StorageKey, SetIncrement{Increment: increment})
	return err
}

func (m *Module) Accumulate(ctx context.Context) error {
	_, err := m.service.Execute(ctx, StorageKey, Accumulate{})
	return err
}

func (m *Module) Accumulation(ctx context.Context) (Accumulation, error) {
	entity, err := m.service.Load(ctx, StorageKey)
	if err != nil {
		return Accumulation{}, err
	}

	return *entity.State, nil
}
