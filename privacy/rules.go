package privacy

import (
	"context"
	"slices"

	"github.com/syssam/sqlcore/engine"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

// viewerCtxKey is the context key for storing the viewer.
type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present in the context.
//
// Example:
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("sqlcore/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the specified role.
// Skips if the viewer doesn't have the role.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole returns a rule that allows access if the viewer has any of the specified roles.
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// RequireTenant returns a rule that denies statements when the viewer has
// no tenant. Use this as a guard in front of tenant-scoped tables.
func RequireTenant() Rule {
	return RuleFunc(func(ctx context.Context, _ *engine.Event) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("sqlcore/privacy: viewer required for tenant-scoped statement")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("sqlcore/privacy: tenant required")
		}
		return Skip
	})
}

// ReadOnlyUnlessRole returns a rule denying writes to viewers lacking all
// of the given roles.
func ReadOnlyUnlessRole(roles ...string) Rule {
	return RuleFunc(func(ctx context.Context, e *engine.Event) error {
		if e.Op.IsRead() {
			return Skip
		}
		if viewer := ViewerFromContext(ctx); viewer != nil {
			for _, role := range roles {
				if slices.Contains(viewer.GetRoles(), role) {
					return Skip
				}
			}
		}
		return Denyf("sqlcore/privacy: %s on %q requires one of roles %v", e.Op, e.Table, roles)
	})
}
