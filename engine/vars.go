package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/sqlcore/dialect"
)

// validIdentifierRe validates session variable names.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue doubles single quotes and escapes backslashes.
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

type ctxVarsKey struct{}

// sessionVars holds the variables to set after a connection is acquired.
type sessionVars struct {
	vars []struct{ k, v string }
}

// WithVar returns a new context holding a session variable that is set on
// the connection before the statement runs.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	vars := make([]struct{ k, v string }, len(sv.vars), len(sv.vars)+1)
	copy(vars, sv.vars)
	vars = append(vars, struct{ k, v string }{k: name, v: value})
	return context.WithValue(ctx, ctxVarsKey{}, sessionVars{vars: vars})
}

// WithIntVar calls WithVar with the string representation of the value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// VarFromContext returns the last value set for a session variable.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	for i := len(sv.vars) - 1; i >= 0; i-- {
		if sv.vars[i].k == name {
			return sv.vars[i].v, true
		}
	}
	return "", false
}

// setVars applies the context session variables on ex. The returned
// function resets the variables applied so far and must run before the
// connection is released; it is returned with the error when a SET fails.
// Variables set inside a transaction are not reset.
func setVars(ctx context.Context, ex ExecQuerier, name string, inTx bool) (func() error, error) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return nil, nil
	}
	for _, s := range sv.vars {
		if !isValidIdentifier(s.k) {
			return nil, fmt.Errorf("engine: invalid session variable name: %q", s.k)
		}
	}
	var (
		reset []string
		seen  = make(map[string]struct{}, len(sv.vars))
	)
	resetFn := func() error {
		if inTx || len(reset) == 0 {
			return nil
		}
		// Reset on a fresh context so a cancelled call still cleans up.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var errs []error
		for _, q := range reset {
			if _, err := ex.ExecContext(cleanupCtx, q); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for _, s := range sv.vars {
		if _, err := ex.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", s.k, escapeStringValue(s.v))); err != nil {
			return resetFn, fmt.Errorf("engine: set session variable %q: %w", s.k, err)
		}
		if _, ok := seen[s.k]; !ok {
			switch name {
			case dialect.Postgres:
				reset = append(reset, fmt.Sprintf("RESET %s", s.k))
			case dialect.MySQL:
				reset = append(reset, fmt.Sprintf("SET %s = NULL", s.k))
			}
			seen[s.k] = struct{}{}
		}
	}
	if inTx || len(reset) == 0 {
		return nil, nil
	}
	return resetFn, nil
}
