// Package privacy evaluates rule chains before statements reach the database.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/engine"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from rules to indicate how the
// policy evaluation should proceed. Use errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Allow) { ... }
//	if errors.Is(err, privacy.Deny) { ... }
//	if errors.Is(err, privacy.Skip) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("sqlcore/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("sqlcore/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("sqlcore/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether a statement may run.
type Rule interface {
	Eval(context.Context, *engine.Event) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions as rules.
type RuleFunc func(context.Context, *engine.Event) error

// Eval returns f(ctx, e).
func (f RuleFunc) Eval(ctx context.Context, e *engine.Event) error {
	return f(ctx, e)
}

// Policy is an ordered rule chain. The first rule returning a decision
// other than Skip ends the evaluation; when every rule skips the
// statement is allowed.
//
// Policy implements engine.Tracer: a Deny decision cancels the call
// before the statement is sent.
type Policy []Rule

// Eval evaluates the policy. It returns nil when the statement is allowed.
func (p Policy) Eval(ctx context.Context, e *engine.Event) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, e); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// BeforeExecute implements engine.Tracer.
func (p Policy) BeforeExecute(ctx context.Context, e *engine.Event) engine.Action {
	if err := p.Eval(ctx, e); err != nil {
		e.Reason = err.Error()
		return engine.Cancel
	}
	return engine.Continue
}

// AfterExecute implements engine.Tracer.
func (Policy) AfterExecute(context.Context, *engine.Event, error) {}

var _ engine.Tracer = Policy(nil)

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. The decision bypasses every rule.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, *engine.Event) error {
	return f.decision
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
// Returning nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ *engine.Event) error {
		return eval(ctx)
	})
}

// OnOperation evaluates the given rule only on the given operations.
func OnOperation(rule Rule, ops ...sqlcore.Op) Rule {
	return RuleFunc(func(ctx context.Context, e *engine.Event) error {
		if slices.Contains(ops, e.Op) {
			return rule.Eval(ctx, e)
		}
		return Skip
	})
}

// OnTable evaluates the given rule only on the given tables.
func OnTable(rule Rule, tables ...string) Rule {
	return RuleFunc(func(ctx context.Context, e *engine.Event) error {
		if slices.Contains(tables, e.Table) {
			return rule.Eval(ctx, e)
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given operations.
func DenyOperationRule(ops ...sqlcore.Op) Rule {
	rule := RuleFunc(func(_ context.Context, e *engine.Event) error {
		return Denyf("sqlcore/privacy: operation %s on %q is not allowed", e.Op, e.Table)
	})
	return OnOperation(rule, ops...)
}

// AllowOperationRule returns a rule allowing the given operations.
func AllowOperationRule(ops ...sqlcore.Op) Rule {
	return OnOperation(fixedDecision{Allow}, ops...)
}

// DenyUnfilteredWriteRule returns a rule denying updates and deletes
// without a WHERE clause.
func DenyUnfilteredWriteRule() Rule {
	return RuleFunc(func(_ context.Context, e *engine.Event) error {
		if (e.Op == sqlcore.OpUpdate || e.Op == sqlcore.OpDelete) && !e.Filtered {
			return Denyf("sqlcore/privacy: %s on %q without a condition", e.Op, e.Table)
		}
		return Skip
	})
}
