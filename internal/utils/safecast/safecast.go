// Package safecast implements functions to safely cast types to avoid panics
package safecast

import (
	"fmt"
	"math"
	"math/big"

	"github.com/spf13/cast"
)

// BigToInt32 safely converts a big.Int to int32 and checks for overflow
func BigToInt32(value *big.Int) (int32, error) {
	if value == nil {
		return 0, fmt.Errorf("value is nil, cannot convert to int32")
	}
	if !value.IsInt64() || value.Int64() < math.MinInt32 || value.Int64() > math.MaxInt32 {
		return 0, fmt.Errorf("value %s exceeds int32 range", value)
	}

	return cast.ToInt32E(value.Int64())
}

// BigToUint32 safely converts a big.Int to uint32 and checks for overflow
func BigToUint32(value *big.Int) (uint32, error) {
	if value == nil {
		return 0, fmt.Errorf("value is nil, cannot convert to uint32")
	}
	if !value.IsUint64() || value.Uint64() > math.MaxUint32 {
		return 0, fmt.Errorf("value %s exceeds uint32 range", value)
	}

	return cast.ToUint32E(value.Uint64())
}
