package sdk

import (
	"context"

	"github.com/smartcontractkit/corks/types"
)

// Alerter is the operator-facing channel for failures that need attention.
type Alerter interface {
	Alert(ctx context.Context, alert types.Alert) error
}

// LogAlerter writes alerts to the context logger.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, alert types.Alert) error {
	LoggerFrom(ctx).Errorw("cork needs operator attention",
		"cork", alert.ID.String(),
		"kind", string(alert.Kind),
		"reason", alert.Reason,
	)

	return nil
}
