package dispatcher

import (
	"time"

	"github.com/smartcontractkit/corks/types"
)

// Config bounds retries and pacing of the dispatcher.
type Config struct {
	// MaxRetries caps the retries of a transient failure, after which the cork fails with an
	// alert.
	MaxRetries uint64 `yaml:"maxRetries" validate:"gte=0"`
	// InitialBackoff and MaxBackoff shape the exponential backoff between retries.
	InitialBackoff types.Duration `yaml:"initialBackoff"`
	MaxBackoff     types.Duration `yaml:"maxBackoff"`
	// PollInterval is the delay between outcome queries of a sent transaction.
	PollInterval types.Duration `yaml:"pollInterval"`
	// OutcomeTimeout bounds the wait for a final outcome. Zero waits until the context is done.
	OutcomeTimeout types.Duration `yaml:"outcomeTimeout"`
	// RatePerSecond limits transaction submissions. Zero disables the limit.
	RatePerSecond int `yaml:"ratePerSecond" validate:"gte=0"`
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: types.NewDuration(500 * time.Millisecond),
		MaxBackoff:     types.NewDuration(30 * time.Second),
		PollInterval:   types.NewDuration(2 * time.Second),
		OutcomeTimeout: types.NewDuration(10 * time.Minute),
		RatePerSecond:  5,
	}
}
