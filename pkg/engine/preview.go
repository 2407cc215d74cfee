package engine

import (
	"context"
	"log/slog"

	"github.com/hrflow/hrflow/pkg/graph"
	"github.com/hrflow/hrflow/pkg/log"
	"github.com/hrflow/hrflow/pkg/models"
	"github.com/hrflow/hrflow/pkg/notify"
)

// PreviewApproval is an approval the walk would wait on.
type PreviewApproval struct {
	NodeID       string `json:"node_id"`
	Name         string `json:"name"`
	AssignedRole string `json:"assigned_role,omitempty"`
	AssignedUser string `json:"assigned_user,omitempty"`
}

// Preview is a dry run of a graph against a payload, approving every approval on the way.
type Preview struct {
	Steps     []models.HistoryEntry `json:"steps"`
	Approvals []PreviewApproval     `json:"approvals"`
	Outcome   models.InstanceStatus `json:"outcome"`
	Error     *models.InstanceError `json:"error,omitempty"`
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, notify.Notification) error { return nil }

// Preview walks g without persisting anything or sending notifications. Approvals are assumed
// approved; a graph that revisits an approval stops once the step limit is reached.
func (e *Engine) Preview(ctx context.Context, g *models.Graph, payload map[string]any) (*Preview, error) {
	if err := graph.Validate(g, e.rules); err != nil {
		return nil, err
	}

	dry := &Engine{
		logger:    slog.New(slog.DiscardHandler),
		rules:     e.rules,
		notifier:  discardNotifier{},
		tracer:    e.tracer,
		now:       e.now,
		newID:     e.newID,
		stepLimit: e.stepLimit,
	}
	ctx = log.WithLogger(ctx, dry.logger)

	instance, action, err := dry.Start(ctx, StartRequest{Name: "preview", Graph: g, Payload: payload})
	if err != nil {
		return nil, err
	}

	preview := &Preview{Approvals: []PreviewApproval{}}

	for visits := 0; action != nil; visits++ {
		preview.Approvals = append(preview.Approvals, PreviewApproval{
			NodeID:       action.NodeID,
			Name:         action.NodeName,
			AssignedRole: action.AssignedRole,
			AssignedUser: action.AssignedUser,
		})

		if visits >= e.stepLimit {
			dry.fail(ctx, instance, action.NodeID, models.NodeKindApproval, "step limit exceeded while previewing approvals")

			break
		}

		models.ActionClosure{Status: models.PendingActionStatusApproved, DecidedBy: "preview", DecidedAt: e.now()}.Apply(action)

		if action, err = dry.Resume(ctx, instance, action); err != nil {
			return nil, err
		}
	}

	preview.Steps = instance.History
	preview.Outcome = instance.Status
	preview.Error = instance.Error

	return preview, nil
}
