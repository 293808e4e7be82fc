package accumulator

import (
	"context"

	"github.com/weegigs/wee-ledger-go/we"
)

// StorageKey is the aggregate holding the module's accumulation.
var StorageKey = we.AggregateId{Type: ModuleName, Key: "acc"}

// Store reads and replaces the accumulation kept under StorageKey. An
// accumulation that has never been written reads as the zero value.
type Store struct {
	events we.EventStore
	loader *we.EntityLoader[Accumulation]
}

func NewStore(events we.EventStore) *Store {
	return &Store{events: events, loader: Loader(events)}
}

func (s *Store) Load(ctx context.Context) (we.Entity[Accumulation], error) {
	return s.loader.Load(ctx, StorageKey)
}

func (s *Store) Read(ctx context.Context) (Accumulation, error) {
	entity, err := s.Load(ctx)
	if err != nil {
		return Accumulation{}, err
	}

	return *entity.State, nil
}

// Write replaces the stored accumulation regardless of its current revision.
func (s *Store) Write(ctx context.Context, accumulation Accumulation) error {
	_, err := s.events.Publish(ctx, StorageKey, we.Options(), AccumulationStored{Accumulation: accumulation})
	return err
}

// put replaces the accumulation read as current. It fails with
// we.RevisionConflict if anything was written after current was loaded.
func put(ctx context.Context, publish we.EventPublisher, current we.Entity[Accumulation], next Accumulation) (we.Revision, error) {
	return publish(
		ctx,
		current.Aggregate,
		we.Options(we.WithExpectedRevision(current.Revision)),
		AccumulationStored{Accumulation: next},
	)
}
