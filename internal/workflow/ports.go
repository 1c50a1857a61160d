package workflow

import (
	"context"

	"chronos/pkg/domain"
)

// Store abstracts definition and instance persistence.
type Store interface {
	GetDefinition(ctx context.Context, id domain.DefinitionID) (*Definition, error)
	PutDefinition(ctx context.Context, def *Definition) error
	ListDefinitions(ctx context.Context) ([]Definition, error)
	DefinitionsByModule(ctx context.Context, module string) ([]Definition, error)

	GetInstance(ctx context.Context, id domain.InstanceID) (*Instance, error)
	PutInstance(ctx context.Context, inst *Instance) error
	ListInstances(ctx context.Context) ([]Instance, error)
}

// Notifier receives workflow events so approvers and requesters can be told.
// Calls happen synchronously after the state change commits; implementations
// must not block for long.
type Notifier interface {
	ApprovalRequested(ctx context.Context, inst *Instance, approval PendingApproval)
	RequesterUpdated(ctx context.Context, inst *Instance, event ActionType)
}
