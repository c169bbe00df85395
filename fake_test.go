package corks

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/corks/sdk"
	"github.com/smartcontractkit/corks/types"
)

// fakeWriter is a fake implementation of io.Writer.
type fakeWriter struct {
	n   int
	err error
}

// newFakeWriter returns a new Writer.
func newFakeWriter(n int, err error) *fakeWriter {
	return &fakeWriter{
		n:   n,
		err: err,
	}
}

// Write doesn't actually write anything, it just returns the values in the Writer.
func (w *fakeWriter) Write(p []byte) (n int, err error) {
	return w.n, w.err
}

// fakeSigner implements the Signer interface for testing purposes
type fakeSigner struct {
	sigB []byte
	err  error
}

// newFakeSigner creates a new fakeSigner. The args provided will be returned when Sign is called.
func newFakeSigner(sigB []byte, err error) Signer {
	return &fakeSigner{sigB: sigB, err: err}
}

// Sign returns the signature bytes and error provided when the fakeSigner was created.
func (s *fakeSigner) Sign(types.CorkID) ([]byte, error) {
	return s.sigB, s.err
}

// GetAddress returns a zero address.
func (s *fakeSigner) GetAddress() (common.Address, error) {
	return common.Address{}, nil
}

// fakeFeed delivers its events in order, then blocks until ctx is done.
type fakeFeed struct {
	events []types.HeightEvent
}

var _ sdk.HeightFeed = (*fakeFeed)(nil)

func (f *fakeFeed) Run(ctx context.Context, handle sdk.HeightHandler) error {
	for _, ev := range f.events {
		if err := handle(ctx, ev); err != nil {
			return err
		}
	}
	<-ctx.Done()

	return ctx.Err()
}
