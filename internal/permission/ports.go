package permission

import (
	"context"

	"chronos/pkg/domain"
)

// Store abstracts role and user persistence for the checker.
type Store interface {
	GetUser(ctx context.Context, id domain.UserID) (*User, error)
	PutUser(ctx context.Context, user *User) error
	GetRole(ctx context.Context, id domain.RoleID) (*Role, error)
	PutRole(ctx context.Context, role *Role) error
	// RolesByIDs returns the roles matching ids, silently skipping unknown
	// ones. Order follows ids.
	RolesByIDs(ctx context.Context, ids []domain.RoleID) ([]Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

// DecisionSink receives every permission decision so callers can audit it.
// The checker itself stays a pure query; the handler publishes through this
// port after responding.
type DecisionSink interface {
	PermissionDecision(ctx context.Context, req Request, res Result)
}
