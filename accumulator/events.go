package accumulator

import (
	"github.com/goccy/go-json"
	"lukechampine.com/uint128"

	"github.com/weegigs/wee-ledger-go/we"
)

var (
	AccumulationStoredEvent = we.EventType(ModuleName + ":accumulation-stored")
	AccumulatedEvent        = we.EventType(ModuleName + ":accumulated")
)

// AccumulationStored replaces the stored accumulation. It is the only event
// written to the module's aggregate.
type AccumulationStored struct {
	Accumulation
}

func (AccumulationStored) EventType() we.EventType {
	return AccumulationStoredEvent
}

// Accumulated is deposited for external consumers after an accumulate has
// been committed.
type Accumulated struct {
	NewCount uint128.Uint128
	Who      we.AccountID
}

func (Accumulated) EventType() we.EventType {
	return AccumulatedEvent
}

type accumulatedJSON struct {
	NewCount amount       `json:"new_count"`
	Who      we.AccountID `json:"who"`
}

func (e Accumulated) MarshalJSON() ([]byte, error) {
	return json.Marshal(accumulatedJSON{NewCount: amount(e.NewCount), Who: e.Who})
}

func (e *Accumulated) UnmarshalJSON(data []byte) error {
	var decoded accumulatedJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	e.NewCount = uint128.Uint128(decoded.NewCount)
	e.Who = decoded.Who

	return nil
}
