package rbac

import (
	"context"
	"log/slog"
)

// Evaluator answers capability questions. It is free of side effects, so it
// serves both enforcement in the guard and display logic such as deciding
// which dashboard sections a user sees. Every call re-reads current records;
// an edited role takes effect on the very next evaluation.
type Evaluator struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(resolver *Resolver, logger *slog.Logger) *Evaluator {
	return &Evaluator{resolver: resolver, logger: logger}
}

// HasCapability reports whether the principal may exercise the capability in
// the given school. Storage failures fail closed: the error propagates and
// the answer is false.
func (e *Evaluator) HasCapability(ctx context.Context, p Principal, schoolID int64, c Capability) (bool, error) {
	if p == nil {
		return false, nil
	}
	if p.IsSuperUser() {
		return true, nil
	}
	if schoolID <= 0 {
		return false, nil
	}
	m, ok, err := e.resolver.ResolveMembership(ctx, p.GetID(), schoolID)
	if err != nil {
		return false, err
	}
	if !ok || m.Role == nil {
		return false, nil
	}
	return m.Role.HasCapability(c), nil
}

// GrantedCapabilities returns the canonical capabilities the principal holds
// in the school, for rendering role badges and gating navigation entries.
func (e *Evaluator) GrantedCapabilities(ctx context.Context, p Principal, schoolID int64) ([]Capability, error) {
	var granted []Capability
	for _, c := range Capabilities() {
		ok, err := e.HasCapability(ctx, p, schoolID, c)
		if err != nil {
			return nil, err
		}
		if ok {
			granted = append(granted, c)
		}
	}
	return granted, nil
}
