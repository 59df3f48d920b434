// Package privacy provides rule chains deciding whether a statement may
// reach the database.
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: Grants access and stops evaluation
//   - Deny: Denies access and stops evaluation
//   - Skip: Continues to the next rule
//
// If all rules return Skip, the statement is allowed. End a chain with
// AlwaysDenyRule to deny by default.
//
// # Engine Integration
//
// A Policy is an engine.Tracer. Install it on the engine or per call; a Deny
// decision cancels the call with a *sqlcore.CancelledByTraceError whose
// Reason carries the decision:
//
//	policy := privacy.Policy{
//	    privacy.DenyUnfilteredWriteRule(),
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.ReadOnlyUnlessRole("writer"),
//	}
//	eng := engine.New(engine.WithTracer(policy))
//
// # Viewer
//
// The viewer is stored in context and retrieved during policy evaluation:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
package privacy
