package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/types"
)

const defaultPollInterval = 5 * time.Second

var _ sdk.HeightFeed = (*HeightFeed)(nil)

// HeightFeed polls an EVM node for its head and finalized heights.
//
// By default the node's "finalized" block tag defines finality. With WithConfirmations a height is
// final once the given number of blocks were built on top of it. A final height lower than the
// previous one is reported as a reorg.
type HeightFeed struct {
	lggr          *zap.Logger
	client        HeaderReader
	interval      time.Duration
	confirmations *uint64
	validators    *types.ValidatorSet

	final uint64
	head  uint64
	sent  bool
}

// HeightFeedOption configures a HeightFeed.
type HeightFeedOption func(*HeightFeed)

// WithConfirmations derives finality from the head height instead of the finalized tag.
func WithConfirmations(n uint64) HeightFeedOption {
	return func(f *HeightFeed) { f.confirmations = &n }
}

// WithValidatorSet attaches a static validator set to the first event.
func WithValidatorSet(set types.ValidatorSet) HeightFeedOption {
	return func(f *HeightFeed) { f.validators = &set }
}

// NewHeightFeed creates a feed polling every interval, or every 5 seconds when interval is not
// positive.
func NewHeightFeed(lggr *zap.Logger, client HeaderReader, interval time.Duration, opts ...HeightFeedOption) *HeightFeed {
	f := &HeightFeed{
		lggr:     lggr.Named("height-feed"),
		client:   client,
		interval: interval,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.interval <= 0 {
		f.interval = defaultPollInterval
	}

	return f
}

// Run polls until ctx is done. RPC failures are logged and retried on the next tick, handler
// failures stop the feed.
func (f *HeightFeed) Run(ctx context.Context, handle sdk.HeightHandler) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		events, err := f.Poll(ctx)
		if err != nil {
			f.lggr.Warn("failed to poll heights", zap.Error(err))
		}
		for _, ev := range events {
			if err := handle(ctx, ev); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads the node once and returns the events describing the progress since the last poll.
func (f *HeightFeed) Poll(ctx context.Context) ([]types.HeightEvent, error) {
	head, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	headHeight := head.Number.Uint64()

	var final uint64
	if f.confirmations != nil {
		if headHeight > *f.confirmations {
			final = headHeight - *f.confirmations
		}
	} else {
		header, err := f.client.HeaderByNumber(ctx, big.NewInt(int64(rpc.FinalizedBlockNumber)))
		if err != nil {
			return nil, fmt.Errorf("failed to get finalized head: %w", err)
		}
		final = header.Number.Uint64()
	}

	var events []types.HeightEvent
	switch {
	case final < f.final:
		from := f.final
		events = append(events, types.HeightEvent{Height: final, Final: true, ReorgFrom: &from})
	case final > f.final || !f.sent:
		events = append(events, types.HeightEvent{Height: final, Final: true})
	}
	if len(events) > 0 && !f.sent && f.validators != nil {
		set := f.validators.Clone()
		events[0].ValidatorSet = &set
	}
	if headHeight > final && (headHeight != f.head || len(events) > 0) {
		events = append(events, types.HeightEvent{Height: headHeight})
	}

	f.final, f.head, f.sent = final, headHeight, true

	return events, nil
}
