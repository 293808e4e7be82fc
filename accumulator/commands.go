package accumulator

import (
	"github.com/goccy/go-json"
	"lukechampine.com/uint128"
)

const (
	SetIncrementCmd = ModuleName + ":set-increment"
	AccumulateCmd   = ModuleName + ":accumulate"
)

type SetIncrement struct {
	Increment uint128.Uint128
}

func (SetIncrement) TypeName() string {
	return SetIncrementCmd
}

type setIncrementJSON struct {
	Increment amount `json:"increment"`
}

func (c SetIncrement) MarshalJSON() ([]byte, error) {
	return json.Marshal(setIncrementJSON{Increment: amount(c.Increment)})
}

func (c *SetIncrement) UnmarshalJSON(data []byte) error {
	var decoded setIncrementJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	c.Increment = uint128.Uint128(decoded.Increment)
	return nil
}

type Accumulate struct{}

func (Accumulate) TypeName() string {
	return AccumulateCmd
}
