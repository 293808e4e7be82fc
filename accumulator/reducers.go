package accumulator

import "github.com/weegigs/wee-ledger-go/we"

func accumulationStored() we.Reducer[Accumulation] {
	var reducer we.ReducerFunction[Accumulation, AccumulationStored] = func(state *Accumulation, stored *AccumulationStored) error {
		*state = stored.Accumulation
		return nil
	}

	return reducer
}

func Reducers() we.Reducers[Accumulation] {
	return we.Reducers[Accumulation]{
		AccumulationStoredEvent: accumulationStored(),
	}
}

func Loader(store we.EventStore) *we.EntityLoader[Accumulation] {
	return we.NewEntityLoader[Accumulation](store, Reducers())
}
