package runtime

import (
	"context"
)

// accountStorageOverhead is the number of bytes charged for every account on
// top of its data.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L47
const accountStorageOverhead = 128

// Rent computes rent exempt balances.
type Rent struct {
	conf *conf
}

func NewRent(configProvider ConfigProvider) *Rent {
	return &Rent{conf: configProvider()}
}

// MinimumBalance returns the minimum balance for an account holding dataLen
// bytes to be rent exempt.
func (r *Rent) MinimumBalance(dataLen uint64) uint64 {
	ctx := context.Background()
	bytes := accountStorageOverhead + dataLen
	perYear := bytes * r.conf.lamportsPerByteYear.Get(ctx)
	return uint64(float64(perYear) * r.conf.exemptionThresholdYears.Get(ctx))
}
