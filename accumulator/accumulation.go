package accumulator

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"lukechampine.com/uint128"

	"github.com/weegigs/wee-ledger-go/we"
)

const ModuleName = "template-module"

// Accumulation is the module's only stored record: a running count and the
// step added to it by each accumulate call.
type Accumulation struct {
	CurrentCount     uint128.Uint128
	IncrementPerCall uint128.Uint128
}

func (Accumulation) EntityType() we.EntityType {
	return we.EntityType(ModuleName + ":accumulation")
}

// Accumulate returns the accumulation advanced by one step, or
// AccumulationOverflow when the count would exceed the u128 range.
func (a Accumulation) Accumulate() (Accumulation, error) {
	next, ok := checkedAdd(a.CurrentCount, a.IncrementPerCall)
	if !ok {
		return a, AccumulationOverflow
	}

	return Accumulation{CurrentCount: next, IncrementPerCall: a.IncrementPerCall}, nil
}

func (a Accumulation) WithIncrement(increment uint128.Uint128) Accumulation {
	return Accumulation{CurrentCount: a.CurrentCount, IncrementPerCall: increment}
}

func checkedAdd(x, y uint128.Uint128) (uint128.Uint128, bool) {
	sum := x.AddWrap(y)
	return sum, sum.Cmp(x) >= 0
}

type accumulationJSON struct {
	CurrentCount     amount `json:"current_count"`
	IncrementPerCall amount `json:"increment_per_call"`
}

func (a Accumulation) MarshalJSON() ([]byte, error) {
	return json.Marshal(accumulationJSON{
		CurrentCount:     amount(a.CurrentCount),
		IncrementPerCall: amount(a.IncrementPerCall),
	})
}

func (a *Accumulation) UnmarshalJSON(data []byte) error {
	var decoded accumulationJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	a.CurrentCount = uint128.Uint128(decoded.CurrentCount)
	a.IncrementPerCall = uint128.Uint128(decoded.IncrementPerCall)

	return nil
}

// amount is the json form of a u128. It is written as a decimal string and
// read from either a string or a bare number.
type amount uint128.Uint128

func (a amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint128.Uint128(a).String())
}

func (a *amount) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		*a = amount(uint128.Zero)
		return nil
	}

	value, err := uint128.FromString(text)
	if err != nil {
		return errors.Wrapf(err, "invalid u128 %s", data)
	}

	*a = amount(value)
	return nil
}
