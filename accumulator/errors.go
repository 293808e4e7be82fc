package accumulator

import "github.com/weegigs/wee-ledger-go/we"

// AccumulationOverflow rejects an accumulate whose result would not fit in
// a u128.
var AccumulationOverflow = we.NewModuleError(ModuleName, "accumulation-overflow")
