// Package auth resolves requests to a principal with per-workspace roles.
// User and workspace management live elsewhere; the core only trusts this
// resolution and checks roles at mutation boundaries.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// Principal is an authenticated caller and the workspaces it may touch.
type Principal struct {
	UserID     uuid.UUID
	Workspaces map[uuid.UUID]Role
}

// Authorizer turns a request into a principal, or nil when unauthenticated.
type Authorizer interface {
	Resolve(r *http.Request) (*Principal, error)
}

func (p *Principal) WorkspaceIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Workspaces))
	for id := range p.Workspaces {
		ids = append(ids, id)
	}
	return ids
}

func (p *Principal) CanRead(workspaceID uuid.UUID) bool {
	_, ok := p.Workspaces[workspaceID]
	return ok
}

// CanEdit reports whether the principal may mutate documents and tags in the
// workspace. Viewers cannot.
func (p *Principal) CanEdit(workspaceID uuid.UUID) bool {
	role, ok := p.Workspaces[workspaceID]
	return ok && (role == RoleEditor || role == RoleOwner)
}

// IsOwner gates owner-only operations such as tag merges.
func (p *Principal) IsOwner(workspaceID uuid.UUID) bool {
	return p.Workspaces[workspaceID] == RoleOwner
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
