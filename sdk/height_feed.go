package sdk

import (
	"context"

	"github.com/smartcontractkit/corks/types"
)

// HeightHandler consumes chain-state events in delivery order.
type HeightHandler func(ctx context.Context, ev types.HeightEvent) error

// HeightFeed is the chain-state feed: heights with their finality flag, validator set snapshots
// and reorg notifications. Run blocks until ctx is done or the handler fails.
type HeightFeed interface {
	Run(ctx context.Context, handle HeightHandler) error
}
