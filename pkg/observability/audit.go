package observability

import (
	"context"
	"log/slog"

	"github.com/mahi1722/ticketflow/pkg/domain"
)

// AuditHooks logs every node transition and action outcome.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_leave",
				"instance_id", e.InstanceID,
				"run_id", e.RunID,
				"node", e.Node,
				"next", e.Next,
				"duration", e.Duration,
			)
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			attrs := []any{
				"instance_id", e.InstanceID,
				"run_id", e.RunID,
				"flow", e.Flow,
				"action", e.Action,
				"status", e.Result.Status,
				"duration", e.Duration,
			}
			if e.Result.Failed() {
				logger.Warn("action", append(attrs, "reason", e.Result.ErrorMessage)...)
				return
			}
			logger.Info("action", attrs...)
		},
		OnTerminal: func(ctx context.Context, e *domain.TerminalEvent) {
			logger.Info("terminal",
				"instance_id", e.InstanceID,
				"run_id", e.RunID,
				"flow", e.Flow,
				"escalated", e.Escalated,
				"steps", e.Steps,
			)
		},
	}
}
